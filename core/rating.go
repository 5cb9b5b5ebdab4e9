package core

// Rating 是一条已观测的评分事实：用户对电影的打分。
// UserID / ItemID 是不透明标识，不要求可解析为数字。
type Rating struct {
	UserID string
	ItemID string
	Value  float64
}

// Movie 是电影目录中的一项，加载后只读。
type Movie struct {
	ID     string
	Title  string
	Genres []string

	// Meta 存放可选的元数据字段（如 year、imdbId）
	Meta map[string]string
}

// Catalog 是按 ID 唯一索引的电影目录，构建后不可变，可被多个 goroutine 并发读取。
type Catalog struct {
	ids    []string
	movies map[string]Movie
}

// NewCatalog 根据电影列表构建目录。
// 重复 ID 以后出现的条目为准，但保留首次出现的位置。
func NewCatalog(movies []Movie) *Catalog {
	c := &Catalog{
		ids:    make([]string, 0, len(movies)),
		movies: make(map[string]Movie, len(movies)),
	}
	for _, m := range movies {
		if _, ok := c.movies[m.ID]; !ok {
			c.ids = append(c.ids, m.ID)
		}
		c.movies[m.ID] = m
	}
	return c
}

// Len 返回目录中的电影数量，nil 目录视为空。
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ids)
}

// Get 按 ID 查找电影。
func (c *Catalog) Get(id string) (Movie, bool) {
	if c == nil {
		return Movie{}, false
	}
	m, ok := c.movies[id]
	return m, ok
}

// Contains 判断目录中是否存在该 ID。
func (c *Catalog) Contains(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// IDs 返回按首次出现顺序排列的 ID 副本。
func (c *Catalog) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Range 按插入顺序遍历目录，fn 返回 false 时停止。
func (c *Catalog) Range(fn func(Movie) bool) {
	if c == nil {
		return
	}
	for _, id := range c.ids {
		if !fn(c.movies[id]) {
			return
		}
	}
}
