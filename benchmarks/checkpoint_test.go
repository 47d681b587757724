package benchmarks

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/randalmurphal/brdflow/pkg/brd"
	"github.com/randalmurphal/brdflow/pkg/flowgraph"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/checkpoint"
)

// draftState builds a pipeline state of realistic size: extracted sources,
// a fact pack and one draft per section.
func draftState() brd.State {
	name := "Atlas"
	sections := []string{"Scope", "Requirements", "Risks", "Timeline", "Budget"}

	s := brd.State{
		TemplatePath: "template.md",
		Inputs:       []string{"notes.txt", "interview.docx"},
		ChunkSize:    brd.DefaultChunkSize,
		MaxChunks:    brd.DefaultMaxChunks,
		Intake: &brd.IntakeSummary{
			ProjectName: &name,
			ProjectType: brd.ProjectGreenfield,
		},
		Outline: brd.Outline{OrderedSections: sections},
	}
	for i := 0; i < 10; i++ {
		s.SourceTexts = append(s.SourceTexts, strings.Repeat("requirement text ", 150))
		s.Facts.Requirements = append(s.Facts.Requirements, brd.Fact{
			Statement: "Requirement " + nodeID(i),
			Evidence:  []brd.Evidence{{SourceName: "notes.txt", Locator: "line 1", Quote: "requirement"}},
		})
	}
	for _, sec := range sections {
		s.Drafts = append(s.Drafts, "## "+sec+"\n\n"+strings.Repeat("Draft text. ", 80))
	}
	return s
}

func checkpointBytes(b *testing.B) []byte {
	b.Helper()
	state, err := json.Marshal(draftState())
	if err != nil {
		b.Fatal(err)
	}
	data, err := checkpoint.New("run-1", brd.NodeSectionWriter, 1, state, brd.NodeAssembler).
		WithVisits(map[string]int{brd.NodeFactExtractor: 2}).
		Marshal()
	if err != nil {
		b.Fatal(err)
	}
	return data
}

func stores(b *testing.B) map[string]checkpoint.Store {
	b.Helper()

	sqlite, err := checkpoint.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	mr := miniredis.RunT(b)
	redis := checkpoint.NewRedisStore(mr.Addr(), "", 0)

	all := map[string]checkpoint.Store{
		"memory": checkpoint.NewMemoryStore(),
		"sqlite": sqlite,
		"redis":  redis,
	}
	b.Cleanup(func() {
		for _, s := range all {
			_ = s.Close()
		}
	})
	return all
}

func BenchmarkStore_Save(b *testing.B) {
	data := checkpointBytes(b)
	for name, store := range stores(b) {
		b.Run(name, func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			for i := 0; i < b.N; i++ {
				if err := store.Save("run-1", nodeID(i%8), data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkStore_Load(b *testing.B) {
	data := checkpointBytes(b)
	for name, store := range stores(b) {
		if err := store.Save("run-1", brd.NodeSectionWriter, data); err != nil {
			b.Fatal(err)
		}
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := store.Load("run-1", brd.NodeSectionWriter); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkStore_Latest measures the lookup resume performs.
func BenchmarkStore_Latest(b *testing.B) {
	data := checkpointBytes(b)
	for name, store := range stores(b) {
		for j := 0; j < 8; j++ {
			if err := store.Save("run-1", nodeID(j), data); err != nil {
				b.Fatal(err)
			}
		}
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := checkpoint.Latest(store, "run-1"); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRun_Checkpointing compares a pipeline-sized state with and
// without a checkpoint after every node.
func BenchmarkRun_Checkpointing(b *testing.B) {
	graph := flowgraph.NewGraph[brd.State]()
	ids := []string{brd.NodeIntake, brd.NodeFactExtractor, brd.NodeGapChecker, brd.NodeOutlineBuilder, brd.NodeSectionWriter}
	for _, id := range ids {
		graph.AddNode(id, func(ctx flowgraph.Context, s brd.State) (brd.State, error) {
			return s, nil
		})
	}
	for i := 0; i < len(ids)-1; i++ {
		graph.AddEdge(ids[i], ids[i+1])
	}
	graph.AddEdge(ids[len(ids)-1], flowgraph.END)
	graph.SetEntry(ids[0])
	compiled := mustCompile(graph)
	ctx := quietContext()
	state := draftState()

	b.Run("none", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = compiled.Run(ctx, state)
		}
	})
	for name, store := range stores(b) {
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, err := compiled.Run(ctx, state,
					flowgraph.WithCheckpointing(store),
					flowgraph.WithRunID("run-"+nodeID(i)),
					flowgraph.WithCheckpointFailureFatal(true),
				)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkStateJSON(b *testing.B) {
	state := draftState()
	data, err := json.Marshal(state)
	if err != nil {
		b.Fatal(err)
	}

	b.Run("marshal", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(state)
		}
	})
	b.Run("unmarshal", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var s brd.State
			_ = json.Unmarshal(data, &s)
		}
	})
}
