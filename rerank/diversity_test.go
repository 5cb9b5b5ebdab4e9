package rerank

import (
	"context"
	"strings"
	"testing"

	"github.com/rushteam/movierec/core"
)

func genreItem(id string, genres ...string) *core.Item {
	it := core.NewItem(id)
	it.Meta[core.MetaGenres] = genres
	return it
}

func TestDiversity(t *testing.T) {
	items := []*core.Item{
		genreItem("1", "Comedy", "Romance"),
		genreItem("2", "Comedy"),
		genreItem("3", "Drama"),
		genreItem("4"),
		genreItem("5", "Comedy"),
		genreItem("6", "Drama", "Comedy"),
	}

	tests := []struct {
		name string
		max  int
		want string
	}{
		{"default one per genre", 0, "1,3,4,2,5,6"},
		{"two per genre", 2, "1,2,3,4,6,5"},
		{"no overflow", 5, "1,2,3,4,5,6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Diversity{MaxPerGenre: tt.max}
			out, err := n.Process(context.Background(), nil, items)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]string, len(out))
			for i, it := range out {
				got[i] = it.ID
			}
			if strings.Join(got, ",") != tt.want {
				t.Errorf("got %v, want %s", got, tt.want)
			}
		})
	}
}
