// Package dataset 读取 MovieLens 格式的评分与电影数据。
//
// 支持两种格式：
//   - CSV（ml-latest / ml-25m）：ratings.csv 为 userId,movieId,rating,timestamp，
//     movies.csv 为 movieId,title,genres，标题可带引号与逗号
//   - DAT（ml-1m）：字段以 "::" 分隔，无表头
//
// 格式按首个非空行自动识别；CSV 的表头行会被跳过。
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rushteam/movierec/core"
)

// NoGenres 是 MovieLens 中表示没有类型的占位值。
const NoGenres = "(no genres listed)"

const datSep = "::"

// LoadRatingsFile 打开并解析评分文件。
func LoadRatingsFile(path string) ([]core.Rating, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ratings: %w", err)
	}
	defer f.Close()
	ratings, err := LoadRatings(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ratings, nil
}

// LoadMoviesFile 打开并解析电影文件。
func LoadMoviesFile(path string) ([]core.Movie, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open movies: %w", err)
	}
	defer f.Close()
	movies, err := LoadMovies(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return movies, nil
}

// LoadRatings 解析 userId,movieId,rating[,timestamp]，按输入顺序返回。
func LoadRatings(r io.Reader) ([]core.Rating, error) {
	var out []core.Rating
	err := readRecords(r, "userid", func(line int, fields []string) error {
		if len(fields) < 3 {
			return lineError(line, fmt.Sprintf("expected at least 3 fields, got %d", len(fields)))
		}
		userID := strings.TrimSpace(fields[0])
		itemID := strings.TrimSpace(fields[1])
		if userID == "" || itemID == "" {
			return lineError(line, "empty user or movie id")
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return lineError(line, fmt.Sprintf("bad rating %q", fields[2]))
		}
		out = append(out, core.Rating{UserID: userID, ItemID: itemID, Value: value})
		return nil
	})
	return out, err
}

// LoadMovies 解析 movieId,title,genres。genres 以 "|" 分隔，NoGenres 视为没有类型。
func LoadMovies(r io.Reader) ([]core.Movie, error) {
	var out []core.Movie
	err := readRecords(r, "movieid", func(line int, fields []string) error {
		if len(fields) < 2 {
			return lineError(line, fmt.Sprintf("expected at least 2 fields, got %d", len(fields)))
		}
		id := strings.TrimSpace(fields[0])
		if id == "" {
			return lineError(line, "empty movie id")
		}
		m := core.Movie{ID: id, Title: strings.TrimSpace(fields[1])}
		if len(fields) > 2 {
			m.Genres = splitGenres(fields[2])
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

func splitGenres(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == NoGenres {
		return nil
	}
	parts := strings.Split(s, "|")
	genres := make([]string, 0, len(parts))
	for _, g := range parts {
		if g = strings.TrimSpace(g); g != "" && g != NoGenres {
			genres = append(genres, g)
		}
	}
	return genres
}

// ErrMalformed 是数据行格式错误，可用 errors.Is 判断；具体行号见错误信息。
var ErrMalformed = core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, "dataset: malformed record")

func lineError(line int, msg string) error {
	return core.WrapDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput,
		fmt.Sprintf("dataset: line %d: %s", line, msg), nil)
}

// readRecords 识别格式后逐行回调，line 从 1 开始。
// headerKey 是表头首列（小写）的名字，例如 "userid"。
func readRecords(r io.Reader, headerKey string, fn func(line int, fields []string) error) error {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	peek, _ := br.Peek(4096)

	if isDat(firstLine(peek)) {
		return readDat(br, fn)
	}
	return readCSV(br, headerKey, fn)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// isDat 判断首行是否为 "::" 分隔。第一个 "::" 之前出现逗号时，
// 它是标题中带 "::" 的无表头 CSV 行。
func isDat(line string) bool {
	i := strings.Index(line, datSep)
	return i >= 0 && !strings.Contains(line[:i], ",")
}

func firstLine(b []byte) string {
	for _, l := range bytes.Split(b, []byte("\n")) {
		if s := strings.TrimSpace(string(l)); s != "" {
			return s
		}
	}
	return ""
}

func readDat(r io.Reader, fn func(int, []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if err := fn(line, strings.Split(text, datSep)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read line %d: %w", line+1, err)
	}
	return nil
}

func readCSV(r io.Reader, headerKey string, fn func(int, []string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return core.WrapDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput,
				fmt.Sprintf("dataset: line %d: invalid csv", line), err)
		}
		line, _ := cr.FieldPos(0)
		if first {
			first = false
			if isHeader(rec, headerKey) {
				continue
			}
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

func isHeader(rec []string, key string) bool {
	if len(rec) == 0 {
		return false
	}
	h := strings.ToLower(strings.TrimSpace(rec[0]))
	h = strings.ReplaceAll(h, "_", "")
	return h == key
}
