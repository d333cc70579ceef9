package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestEncoderWritesOneLinePerValue(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	contents := "foo;\n"
	if err := enc.Encode(&Bundle{Key: "k1", Type: JobLint, Contents: &contents, FilePath: "/p/a.js"}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(Ready{Type: TypeReady}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], `"contents":"foo;\n"`) {
		t.Errorf("embedded newline not escaped: %s", lines[0])
	}
	if lines[1] != `{"type":"ready"}` {
		t.Errorf("ready line = %s", lines[1])
	}
}

func TestEncoderConcurrent(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = enc.Encode(LogLine{Log: strings.Repeat("x", 512)})
		}()
	}
	wg.Wait()

	r := NewLineReader(&buf)
	n := 0
	for {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		resp, err := ParseResponse(line)
		if err != nil {
			t.Fatalf("interleaved output: %v", err)
		}
		if !resp.IsLog() {
			t.Error("expected log line")
		}
		n++
	}
	if n != 50 {
		t.Errorf("read %d lines, want 50", n)
	}
}

func TestEncoderFlagsBundleFields(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(&Bundle{Key: "k", Type: JobClearCache}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, `"contents"`) {
		t.Error("absent contents must be omitted")
	}
	if !strings.Contains(out, `"projectPath":""`) {
		t.Error("projectPath must always be present")
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
		checkFn func(t *testing.T, r *Response)
	}{
		{
			name: "ready",
			line: `{"type":"ready"}`,
			checkFn: func(t *testing.T, r *Response) {
				if !r.IsReady() {
					t.Error("expected ready")
				}
			},
		},
		{
			name: "log",
			line: `{"log":"Creating new ESLint instance"}`,
			checkFn: func(t *testing.T, r *Response) {
				if !r.IsLog() || *r.Log != "Creating new ESLint instance" {
					t.Error("expected log line")
				}
				if r.Key != "" {
					t.Error("log lines are never keyed")
				}
			},
		},
		{
			name: "empty log is still a log",
			line: `{"log":""}`,
			checkFn: func(t *testing.T, r *Response) {
				if !r.IsLog() {
					t.Error("expected log line")
				}
			},
		},
		{
			name: "lint success",
			line: `{"key":"a","results":[{"severity":"error","location":{"file":"/p/a.js","position":[[0,3],[0,4]]},"fix":{"range":[3,3],"text":";"},"excerpt":"Missing semicolon. (semi)"}],"rules":{"semi":{"docs":{"url":"https://eslint.org/docs/rules/semi"}}}}`,
			checkFn: func(t *testing.T, r *Response) {
				if r.Key != "a" || r.IsError() {
					t.Fatal("expected keyed success")
				}
				if len(r.Results) != 1 {
					t.Fatalf("results = %d", len(r.Results))
				}
				m := r.Results[0]
				if m.Location.Position != (Position{{0, 3}, {0, 4}}) {
					t.Errorf("position = %v", m.Location.Position)
				}
				if m.Fix == nil || m.Fix.Text != ";" {
					t.Error("fix not decoded")
				}
				if r.Rules["semi"].Docs.URL == "" {
					t.Error("rule docs not decoded")
				}
			},
		},
		{
			name: "typed failure with version",
			line: `{"key":"b","error":"old","type":"incompatible-version","version":"6.9.9"}`,
			checkFn: func(t *testing.T, r *Response) {
				if !r.IsError() || r.Type != ErrTypeIncompatibleVersion || r.Version != "6.9.9" {
					t.Errorf("unexpected %+v", r)
				}
			},
		},
		{
			name: "fix count",
			line: `{"key":"c","results":[],"rules":{},"fixCount":2}`,
			checkFn: func(t *testing.T, r *Response) {
				if r.FixCount == nil || *r.FixCount != 2 {
					t.Error("fixCount not decoded")
				}
			},
		},
		{
			name: "unknown fields ignored",
			line: `{"key":"d","type":"clear-cache","result":true,"extra":{"x":1}}`,
			checkFn: func(t *testing.T, r *Response) {
				if !r.Result || r.Type != TypeClearCache {
					t.Error("clear-cache ack not decoded")
				}
			},
		},
		{name: "not json", line: `Segmentation fault`, wantErr: true},
		{name: "blank", line: `   `, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseResponse([]byte(tt.line))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, r)
			}
		})
	}
}

func TestParseBundle(t *testing.T) {
	b, err := ParseBundle([]byte(`{"key":"k","type":"fix","contents":"","filePath":"/p/a.js","projectPath":"/p","isModified":true,"config":{"nodeBin":"node"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if b.Type != JobFix || !b.Type.Valid() {
		t.Errorf("type = %q", b.Type)
	}
	if b.Contents == nil || *b.Contents != "" {
		t.Error("empty contents must decode as present")
	}
	if !b.IsModified {
		t.Error("isModified not decoded")
	}
	if string(b.Config) != `{"nodeBin":"node"}` {
		t.Errorf("config = %s", b.Config)
	}

	if _, err := ParseBundle([]byte(`{"key":`)); err == nil {
		t.Error("expected error for truncated bundle")
	}
	if _, err := ParseBundle(nil); !errors.Is(err, ErrEmptyLine) {
		t.Errorf("err = %v, want ErrEmptyLine", err)
	}
}

func TestLineReaderSkipsBlankLines(t *testing.T) {
	r := NewLineReader(strings.NewReader("\n{\"type\":\"ready\"}\n\r\n{\"log\":\"x\"}"))
	first, err := r.Next()
	if err != nil || string(first) != `{"type":"ready"}` {
		t.Fatalf("first = %q, %v", first, err)
	}
	second, err := r.Next()
	if err != nil || string(second) != `{"log":"x"}` {
		t.Fatalf("second = %q, %v", second, err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestJobTypeValid(t *testing.T) {
	for _, jt := range []JobType{JobLint, JobFix, JobDebug, JobClearCache} {
		if !jt.Valid() {
			t.Errorf("%q should be valid", jt)
		}
	}
	if JobType("format").Valid() || JobType("").Valid() {
		t.Error("unknown job types must be invalid")
	}
}

func TestLineReaderSkipsOversizeLines(t *testing.T) {
	input := `{"log":"` + strings.Repeat("x", 200) + "\"}\n" + `{"type":"ready"}` + "\n" + strings.Repeat("y", 300)
	r := NewLineReaderSize(strings.NewReader(input), 64)

	if _, err := r.Next(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("err = %v, want ErrLineTooLong", err)
	}
	line, err := r.Next()
	if err != nil || string(line) != `{"type":"ready"}` {
		t.Fatalf("after oversize line = %q, %v", line, err)
	}
	if _, err := r.Next(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("unterminated tail: err = %v, want ErrLineTooLong", err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestLineReaderLongLineWithinLimit(t *testing.T) {
	// Longer than the internal buffer, shorter than the limit.
	payload := strings.Repeat("z", 200*1024)
	r := NewLineReader(strings.NewReader(payload + "\r\n"))
	line, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if len(line) != len(payload) {
		t.Errorf("len = %d, want %d", len(line), len(payload))
	}
}
