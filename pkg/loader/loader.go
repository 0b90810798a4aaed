// Package loader reads review snapshots from disk so lists can be filtered
// offline.
package loader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/itmstools/itms_console/pkg/model"
)

// maxLine bounds a single JSONL record; reviewed_data can be large
const maxLine = 1024 * 1024 * 10

// Result carries the decoded reviews and the count of records skipped
type Result struct {
	Reviews []model.Review
	Skipped int
}

// LoadFile reads a snapshot. Three shapes are accepted: a JSON array, the
// listing endpoint's {"success", "data"} envelope, and JSONL with one review
// per line.
func LoadFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("no review snapshot found at %s", path)
		}
		return Result{}, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a snapshot from r
func Load(r io.Reader) (Result, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return Result{Reviews: []model.Review{}}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("error reading snapshot: %w", err)
	}

	if first == '[' {
		var reviews []model.Review
		if err := json.NewDecoder(br).Decode(&reviews); err != nil {
			return Result{}, fmt.Errorf("decode snapshot array: %w", err)
		}
		return keepValid(reviews), nil
	}

	data, err := io.ReadAll(br)
	if err != nil {
		return Result{}, fmt.Errorf("error reading snapshot: %w", err)
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(data, &env) == nil && len(env.Data) > 0 {
		var reviews []model.Review
		if err := json.Unmarshal(env.Data, &reviews); err != nil {
			return Result{}, fmt.Errorf("decode snapshot envelope: %w", err)
		}
		return keepValid(reviews), nil
	}
	return loadLines(bytes.NewReader(data))
}

func loadLines(r io.Reader) (Result, error) {
	res := Result{Reviews: []model.Review{}}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rv model.Review
		if err := json.Unmarshal(line, &rv); err != nil || rv.Validate() != nil {
			// Malformed or invalid lines are counted and skipped; the rest still load.
			res.Skipped++
			continue
		}
		res.Reviews = append(res.Reviews, rv)
	}
	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("error reading snapshot: %w", err)
	}
	return res, nil
}

// SaveFile writes reviews as an indented JSON array, creating parent
// directories as needed.
func SaveFile(path string, reviews []model.Review) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(nonNil(reviews), "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// keepValid drops records that fail validation and counts them as skipped
func keepValid(reviews []model.Review) Result {
	res := Result{Reviews: make([]model.Review, 0, len(reviews))}
	for _, rv := range reviews {
		if rv.Validate() != nil {
			res.Skipped++
			continue
		}
		res.Reviews = append(res.Reviews, rv)
	}
	return res
}

func nonNil(reviews []model.Review) []model.Review {
	if reviews == nil {
		return []model.Review{}
	}
	return reviews
}
