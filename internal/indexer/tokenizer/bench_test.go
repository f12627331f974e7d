package tokenizer

import (
	"fmt"
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The policy network predicts reaction rules",
	"medium": `Retrosynthesis planning searches a tree of precursors. Each node holds a
        set of molecules and the value network estimates how likely the node is to
        be solved. Expansion applies reaction rules extracted from reaction data,
        ranked by the policy network, until every molecule is a building block.`,
	"long": strings.Repeat(`Reaction data curation standardizes and filters reactions before
        rule extraction. Duplicate reactions are removed, mapping errors are
        fixed and reactions with unbalanced stoichiometry are dropped. The
        curated set trains the policy network and feeds the planning algorithm. `, 20),
}

func BenchmarkTerms(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = Terms(text)
			}
		})
	}
}

func BenchmarkTermsParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Terms(text)
		}
	})
}

func BenchmarkStem(b *testing.B) {
	words := []string{
		"reactions", "standardization", "retrosynthesis", "filtration",
		"extraction", "networks", "planning", "installation",
		"applications", "contribution",
	}
	b.ReportAllocs()
	for b.Loop() {
		for _, w := range words {
			_ = Stem(w)
		}
	}
}

func BenchmarkTermsVaryingSize(b *testing.B) {
	base := "reaction rules extraction policy network training "
	for _, size := range []int{10, 100, 1000, 10000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = Terms(text)
			}
		})
	}
}
