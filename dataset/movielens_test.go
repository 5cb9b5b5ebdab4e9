package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rushteam/movierec/core"
)

func TestLoadRatings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []core.Rating
	}{
		{
			name:  "csv with header",
			input: "userId,movieId,rating,timestamp\n1,31,2.5,1260759144\n1,1029,3.0,1260759179\n",
			want: []core.Rating{
				{UserID: "1", ItemID: "31", Value: 2.5},
				{UserID: "1", ItemID: "1029", Value: 3},
			},
		},
		{
			name:  "csv without header or timestamp",
			input: "7,10,4\n8,10,5\n",
			want: []core.Rating{
				{UserID: "7", ItemID: "10", Value: 4},
				{UserID: "8", ItemID: "10", Value: 5},
			},
		},
		{
			name:  "dat",
			input: "1::1193::5::978300760\n\n1::661::3::978302109\n",
			want: []core.Rating{
				{UserID: "1", ItemID: "1193", Value: 5},
				{UserID: "1", ItemID: "661", Value: 3},
			},
		},
		{
			name:  "header only",
			input: "userId,movieId,rating\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadRatings(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("LoadRatings() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("LoadRatings() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadRatings_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  string
	}{
		{"bad rating", "userId,movieId,rating\n1,2,3\n1,3,good\n", "line 3"},
		{"too few fields", "1,2\n", "line 1"},
		{"nan", "1,2,NaN\n", "line 1"},
		{"empty id", "1,,4\n", "line 1"},
		{"bad quote", "1,\"2,3\n", "line"},
		{"dat too few", "1::2\n", "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRatings(strings.NewReader(tt.input))
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("LoadRatings() = %v, want ErrMalformed", err)
			}
			if !strings.Contains(err.Error(), tt.line) {
				t.Errorf("错误信息应包含行号 %q: %v", tt.line, err)
			}
		})
	}
}

func TestLoadMovies(t *testing.T) {
	input := `movieId,title,genres
1,Toy Story (1995),Adventure|Animation|Children|Comedy|Fantasy
11,"American President, The (1995)",Comedy|Drama|Romance
176,Some Film (2001),(no genres listed)
`
	movies, err := LoadMovies(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(movies) != 3 {
		t.Fatalf("len = %d, want 3", len(movies))
	}
	if movies[1].Title != "American President, The (1995)" {
		t.Errorf("带逗号的标题解析错误: %q", movies[1].Title)
	}
	if !reflect.DeepEqual(movies[0].Genres, []string{"Adventure", "Animation", "Children", "Comedy", "Fantasy"}) {
		t.Errorf("Genres = %v", movies[0].Genres)
	}
	if movies[2].Genres != nil {
		t.Errorf("(no genres listed) 应映射为空, got %v", movies[2].Genres)
	}

	dat, err := LoadMovies(strings.NewReader("1::Toy Story (1995)::Animation|Children's|Comedy\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(dat) != 1 || dat[0].Title != "Toy Story (1995)" || len(dat[0].Genres) != 3 {
		t.Errorf("dat 解析结果 = %+v", dat)
	}
}

func TestLoadMovies_FormatDetection(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []core.Movie
	}{
		{
			name:  "headerless csv with :: in title",
			input: "5,Star Wars::Episode IV (1977),Sci-Fi\n6,Heat (1995),Action\n",
			want: []core.Movie{
				{ID: "5", Title: "Star Wars::Episode IV (1977)", Genres: []string{"Sci-Fi"}},
				{ID: "6", Title: "Heat (1995)", Genres: []string{"Action"}},
			},
		},
		{
			name:  "bom without header",
			input: "\ufeff1,Toy Story (1995),Comedy\n",
			want:  []core.Movie{{ID: "1", Title: "Toy Story (1995)", Genres: []string{"Comedy"}}},
		},
		{
			name:  "bom with header",
			input: "\ufeffmovieId,title,genres\n1,Toy Story (1995),Comedy\n",
			want:  []core.Movie{{ID: "1", Title: "Toy Story (1995)", Genres: []string{"Comedy"}}},
		},
		{
			name:  "bom dat",
			input: "\ufeff1::Toy Story, The (1995)::Comedy\n",
			want:  []core.Movie{{ID: "1", Title: "Toy Story, The (1995)", Genres: []string{"Comedy"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadMovies(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("LoadMovies() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("LoadMovies() = %+v, want %+v", got, tt.want)
			}
		})
	}

	ratings, err := LoadRatings(strings.NewReader("\ufeff1::31::2.5::1260759144\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(ratings) != 1 || ratings[0].UserID != "1" {
		t.Errorf("带 BOM 的 dat 评分 = %+v", ratings)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	rp := filepath.Join(dir, "ratings.csv")
	mp := filepath.Join(dir, "movies.csv")
	if err := os.WriteFile(rp, []byte("userId,movieId,rating\n1,1,4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(mp, []byte("movieId,title,genres\n1,A,Drama\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if r, err := LoadRatingsFile(rp); err != nil || len(r) != 1 {
		t.Errorf("LoadRatingsFile = %v, %v", r, err)
	}
	if m, err := LoadMoviesFile(mp); err != nil || len(m) != 1 {
		t.Errorf("LoadMoviesFile = %v, %v", m, err)
	}
	if _, err := LoadRatingsFile(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("不存在的文件应报错")
	}
}

func TestHistory(t *testing.T) {
	h := NewHistory([]core.Rating{
		{UserID: "10", ItemID: "b", Value: 4},
		{UserID: "2", ItemID: "a", Value: 3},
		{UserID: "10", ItemID: "a", Value: 5},
		{UserID: "10", ItemID: "b", Value: 1},
		{UserID: "alice", ItemID: "c", Value: 2},
	})

	if got := h.Users(); !reflect.DeepEqual(got, []string{"2", "10", "alice"}) {
		t.Errorf("Users() = %v", got)
	}
	if got := h.Items("10"); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("Items(10) = %v, want [b a]", got)
	}
	if got := h.Items("nobody"); got != nil {
		t.Errorf("未知用户应返回 nil, got %v", got)
	}
	got, err := h.RatedItems(context.Background(), "2")
	if err != nil || !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("RatedItems = %v, %v", got, err)
	}
	if h.Len() != 3 {
		t.Errorf("Len() = %d", h.Len())
	}

	var empty *History
	if empty.Users() != nil || empty.Len() != 0 {
		t.Error("nil History 应视为空")
	}
}

func TestPopularity(t *testing.T) {
	ratings := []core.Rating{
		{UserID: "1", ItemID: "20", Value: 4},
		{UserID: "1", ItemID: "20", Value: 5},
		{UserID: "2", ItemID: "20", Value: 3},
		{UserID: "1", ItemID: "3", Value: 2},
		{UserID: "3", ItemID: "10", Value: 1},
		{UserID: "2", ItemID: "10", Value: 4},
		{UserID: "3", ItemID: "7", Value: 5},
	}
	got := Popularity(ratings)
	want := []ItemCount{{"10", 2}, {"20", 2}, {"3", 1}, {"7", 1}}
	if len(got) != len(want) {
		t.Fatalf("Popularity() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
	if ids := PopularIDs(got); ids[0] != "10" || ids[3] != "7" {
		t.Errorf("PopularIDs() = %v", ids)
	}
	if len(Popularity(nil)) != 0 {
		t.Error("空输入应返回空结果")
	}
}
