package nn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultEdibleKeywords is the stock category list.
// The position of a keyword is its class index in the label files, so only ever append to this list.
var DefaultEdibleKeywords = []string{
	"chips",
	"snack",
	"candy",
	"chocolate",
	"cookie",
	"cracker",
	"bread",
	"sandwich",
	"fruit",
	"apple",
	"banana",
	"orange",
	"drink",
	"juice",
	"soda",
	"water",
	"milk",
	"coffee",
	"bottle",
	"can",
	"cup",
}

var ErrEmptyCategories = errors.New("category list is empty")

// Categories is an ordered list of category keywords.
// The zero-based position of a keyword is its class index.
// Once created, the order never changes.
type Categories struct {
	keywords []string
	index    map[string]int
}

// NewCategories validates and normalizes (trim + lower case) the keyword list.
// Empty and duplicate keywords are rejected, because either would make class indices ambiguous.
func NewCategories(keywords []string) (*Categories, error) {
	if len(keywords) == 0 {
		return nil, ErrEmptyCategories
	}
	c := &Categories{
		keywords: make([]string, 0, len(keywords)),
		index:    map[string]int{},
	}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return nil, fmt.Errorf("empty keyword at position %v", len(c.keywords))
		}
		if prev, ok := c.index[k]; ok {
			return nil, fmt.Errorf("keyword '%v' appears twice (positions %v and %v)", k, prev, len(c.keywords))
		}
		c.index[k] = len(c.keywords)
		c.keywords = append(c.keywords, k)
	}
	return c, nil
}

// Create Categories from a known-good list, and panic if the list is invalid
func MustCategories(keywords []string) *Categories {
	c, err := NewCategories(keywords)
	if err != nil {
		panic(err)
	}
	return c
}

// Match returns the class of the first keyword (in list order) that is a substring of the
// lower-cased name. So "ChipsBottle" is "chips" if "chips" comes before "bottle" in the list.
func (c *Categories) Match(name string) (class int, keyword string, ok bool) {
	lower := strings.ToLower(name)
	for i, k := range c.keywords {
		if strings.Contains(lower, k) {
			return i, k, true
		}
	}
	return -1, "", false
}

// Index returns the class index of an exact keyword
func (c *Categories) Index(keyword string) (int, bool) {
	i, ok := c.index[strings.ToLower(keyword)]
	return i, ok
}

// Keyword returns the keyword of a class index, or an empty string if out of range
func (c *Categories) Keyword(class int) string {
	if class < 0 || class >= len(c.keywords) {
		return ""
	}
	return c.keywords[class]
}

func (c *Categories) Len() int {
	return len(c.keywords)
}

// Keywords returns a copy of the keyword list, in class order
func (c *Categories) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

// WriteClassFile writes one keyword per line, in class order (the YOLO "classes.txt" convention)
func (c *Categories) WriteClassFile(w io.Writer) error {
	for _, k := range c.keywords {
		if _, err := fmt.Fprintln(w, k); err != nil {
			return err
		}
	}
	return nil
}

// Load a text file with class names on each line
func LoadClassFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	classes := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			classes = append(classes, line)
		}
	}
	return classes, scanner.Err()
}
