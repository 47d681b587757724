package brd

import "github.com/randalmurphal/brdflow/pkg/prompt"

// Output token budgets per stage.
const (
	intakeMaxTokens   = 800
	factsMaxTokens    = 1800
	gapsMaxTokens     = 1400
	outlineMaxTokens  = 800
	sectionMaxTokens  = 1400
	assemblyMaxTokens = 2000
)

var intakePrompt = prompt.New("intake", `SYSTEM
You are an expert business analyst. Work only from the inputs below.

USER
Task:
- Produce an IntakeSummary with:
  - project_name (null when the inputs do not name the project)
  - project_type: "greenfield" | "brownfield" | "unknown"
  - primary_workflows (list of strings)
  - assumptions (list of strings)
  - open_questions (list of strings)

Output:
Return valid JSON matching the IntakeSummary schema.

Constraints:
- Do not invent facts that are not in the inputs.

INPUTS:
${inputs}

OPTIONAL_BROWNFIELD:
${brownfield}
`)

var factsPrompt = prompt.New("fact_extractor", `SYSTEM
You are a forensic business analyst. Do NOT invent. Every fact needs evidence.

USER
Task:
- Build a FactPack from the inputs.
- Attach 1-3 evidence items (source_name, locator, quote) to every fact.
- Leave a category empty when the inputs hold no facts for it.

Output:
Return valid JSON matching the FactPack schema with these keys:
goals, scope_in, scope_out, stakeholders, requirements, constraints, risks,
assumptions, data_sources, integrations, security_compliance.

INPUTS:
${inputs}

OPTIONAL_BROWNFIELD:
${brownfield}
`)

var gapsPrompt = prompt.New("gap_checker", `SYSTEM
You check business requirements against a document template.

USER
Task:
- Compare the FactPack with the template sections.
- For every section, check each required field.
- When a field cannot be derived from the facts, report a gap:
  - blocking when the section cannot be written credibly
  - non_blocking when a short assumption is enough
- Give each gap a hint in suggested_evidence_to_provide.
- Give light_assumption_template where an assumption is reasonable.
- Use section names exactly as they appear in the template.

Output:
Return valid JSON matching the GapReport schema (keys: blocking, non_blocking).

FACTS:
${facts}

TEMPLATE:
${template}
`)

var outlinePrompt = prompt.New("outline_builder", `SYSTEM
You are a business requirements editor.

USER
Task:
- Using the template and the gap report, choose the sections to write:
  - keep template order
  - omit sections with blocking gaps unless generate_anyway is true
    (generate_anyway: ${force_generate})
  - include sections with only non_blocking gaps; assumptions are acceptable
- Apply the reviewer feedback below when present.

Output:
Return valid JSON matching the Outline schema (key: ordered_sections).

FACTS:
${facts}

TEMPLATE:
${template}

GAPS:
${gaps}

REVIEWER_FEEDBACK:
${feedback}
`)

var sectionPrompt = prompt.New("section_writer", `SYSTEM
You write ONE section of a business requirements document. Use only the
extracted facts and, where gaps allow, assumptions.

USER
Task:
- Write the "${section}" section.
- When the section has non_blocking gaps, end with a short "Assumptions" subsection.
- Add a "Citations" list of (source_name, locator) pairs.
- Apply the reviewer feedback below when present.

Output:
Return the section as clean Markdown starting with "## ${section}" (no JSON).

FACTS:
${facts}

GAPS_FOR_SECTION:
${gaps}

REVIEWER_FEEDBACK:
${feedback}

USER_INPUTS:
${inputs}
`)

var assemblyPrompt = prompt.New("assembler", `SYSTEM
You compile and validate business requirements documents.

USER
Task:
1) Merge the ordered section drafts into a final document model.
2) Produce the whole document as one Markdown text for stakeholders.
3) Normalize terminology and deduplicate citations.
4) Collect remaining missing information under "Open Questions".

Output:
Return valid JSON matching this schema:
{
  "brd_model": {
    "sections": [string],
    "open_questions": [string]
  },
  "brd_markdown": string
}

SECTION_DRAFTS:
${drafts}

FACTS:
${facts}

TEMPLATE:
${template}
`)
