package cleaner_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/bloom"
	"github.com/haukened/rr-filter/internal/filter/rules"
	"github.com/haukened/rr-filter/internal/filter/services/cleaner"
)

func TestResolver_WithBloomMatchesExactIndex(t *testing.T) {
	var in []domain.Rule
	for i := 0; i < 500; i++ {
		for _, l := range []string{
			fmt.Sprintf("||s%d.test^", i),
			fmt.Sprintf("||ads.s%d.test^", i),
			fmt.Sprintf("@@||cdn.s%d.test^", i),
			fmt.Sprintf("||x.s%d.test^$important", i),
		} {
			r, err := rules.Normalize(l)
			if err != nil {
				t.Fatal(err)
			}
			in = append(in, r)
		}
	}

	wantKept, wantDel := cleaner.ResolveParentChild(in)
	r := cleaner.NewParentChildResolver(cleaner.ResolverOptions{Bloom: bloom.NewFactory(), FPRate: 0.01})
	kept, del := r.Resolve(in)

	assert.Equal(t, wantKept, kept)
	assert.Equal(t, wantDel, del)
	assert.Len(t, del, 500)
}
