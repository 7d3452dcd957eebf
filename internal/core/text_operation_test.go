package core_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"hist-go/internal/core"
)

func opJSON(t *testing.T, op *core.TextOperation) string {
	t.Helper()
	data, err := json.Marshal(op.ToJSON())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return string(data)
}

func fileDataJSON(t *testing.T, fd *core.StringFileData) string {
	t.Helper()
	data, err := json.Marshal(fd.ToRaw())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return string(data)
}

func TestTextOperation_Builders(t *testing.T) {
	tests := []struct {
		name       string
		op         *core.TextOperation
		want       string
		baseLen    int
		targetLen  int
		wantIsNoop bool
	}{
		{"retains merge", core.NewTextOperation().Retain(1).Retain(2), `[3]`, 3, 3, true},
		{"inserts merge", core.NewTextOperation().Insert("a").Insert("b"), `["ab"]`, 0, 2, false},
		{"removes merge", core.NewTextOperation().Remove(1).Remove(-2), `[-3]`, 3, 0, false},
		{"insert goes before remove", core.NewTextOperation().Remove(2).Insert("x"), `["x",-2]`, 2, 1, false},
		{
			"insert after remove merges with earlier insert",
			core.NewTextOperation().Retain(3).Insert("x").Remove(2).Insert("y"),
			`[3,"xy",-2]`, 5, 5, false,
		},
		{"empty ops are ignored", core.NewTextOperation().Retain(0).Insert("").Remove(0), `[]`, 0, 0, true},
		{
			"differently tracked retains stay separate",
			core.NewTextOperation().Retain(2).RetainTracked(2, core.ClearTrackingProps{}),
			`[2,{"r":2,"tracking":{"type":"none"}}]`, 4, 4, false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := opJSON(t, tt.op); got != tt.want {
				t.Errorf("ops = %s, want %s", got, tt.want)
			}
			if tt.op.BaseLength() != tt.baseLen {
				t.Errorf("BaseLength() = %d, want %d", tt.op.BaseLength(), tt.baseLen)
			}
			if tt.op.TargetLength() != tt.targetLen {
				t.Errorf("TargetLength() = %d, want %d", tt.op.TargetLength(), tt.targetLen)
			}
			if tt.op.IsNoop() != tt.wantIsNoop {
				t.Errorf("IsNoop() = %v, want %v", tt.op.IsNoop(), tt.wantIsNoop)
			}
		})
	}
}

func TestTextOperationFromJSON(t *testing.T) {
	t.Run("round trips", func(t *testing.T) {
		in := `[3,"ab",-2,{"r":2,"tracking":{"type":"delete","userId":"u1","ts":"2024-01-01T00:00:00.000Z"}},{"i":"x","commentIds":["c1"]},{"i":"y","tracking":{"type":"insert","userId":"u2","ts":"2024-01-02T00:00:00.000Z"}}]`
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(in), &items); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		op, err := core.TextOperationFromJSON(items)
		if err != nil {
			t.Fatalf("TextOperationFromJSON() error = %v", err)
		}
		if got := opJSON(t, op); got != in {
			t.Errorf("round trip = %s, want %s", got, in)
		}
	})

	t.Run("rejects unknown items", func(t *testing.T) {
		for _, in := range []string{`[true]`, `[0]`, `[{"x":1}]`, `[1.5]`} {
			var items []json.RawMessage
			if err := json.Unmarshal([]byte(in), &items); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if _, err := core.TextOperationFromJSON(items); err == nil {
				t.Errorf("TextOperationFromJSON(%s) error = nil, want error", in)
			}
		}
	})
}

func TestTextOperation_ApplyToString(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		op      *core.TextOperation
		want    string
		wantErr error
	}{
		{"append", "hello", core.NewTextOperation().Retain(5).Insert(" world"), "hello world", nil},
		{"replace", "hello", core.NewTextOperation().Remove(1).Insert("j").Retain(4), "jello", nil},
		{"counts characters not bytes", "héllo", core.NewTextOperation().Retain(2).Remove(3), "hé", nil},
		{"base length mismatch", "hello", core.NewTextOperation().Retain(4), "", core.ErrUnprocessable},
		{"non-BMP insertion", "", core.NewTextOperation().Insert("\U0001F600"), "", core.ErrUnprocessable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.op.ApplyToString(tt.doc)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ApplyToString() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyToString() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ApplyToString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextOperation_ErrorTypes(t *testing.T) {
	var insertion *core.InvalidInsertionError
	_, err := core.NewTextOperation().Insert("\U0001F600").ApplyToString("")
	if !errors.As(err, &insertion) {
		t.Errorf("error = %T, want *InvalidInsertionError", err)
	}

	var tooLong *core.TooLongError
	_, err = core.NewTextOperation().Insert(strings.Repeat("a", core.MaxStringLength+1)).ApplyToLength(0)
	if !errors.As(err, &tooLong) {
		t.Errorf("error = %T, want *TooLongError", err)
	}

	var apply *core.ApplyError
	_, err = core.NewTextOperation().Retain(3).ApplyToLength(2)
	if !errors.As(err, &apply) {
		t.Errorf("error = %T, want *ApplyError", err)
	}
}

func TestTextOperation_Apply(t *testing.T) {
	t.Run("tracked insertion", func(t *testing.T) {
		fd := core.NewStringFileData("hello", nil, nil)
		op := core.NewTextOperation().Retain(5).InsertWith(" world", insertBy("u1", t1), nil)
		if err := op.Apply(fd); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if fd.Content() != "hello world" {
			t.Errorf("Content() = %q, want %q", fd.Content(), "hello world")
		}
		checkChanges(t, fd.TrackedChanges(), []wantChange{{rng(5, 6), core.TrackingInsert}})
	})

	t.Run("failed apply leaves the file untouched", func(t *testing.T) {
		comments := core.NewCommentList(core.NewComment("c1", []core.Range{rng(0, 2)}, false))
		fd := core.NewStringFileData("hello", comments, nil)
		before := fileDataJSON(t, fd)
		op := core.NewTextOperation().Remove(2).Insert("\U0001F600").Retain(3)
		if err := op.Apply(fd); !errors.Is(err, core.ErrUnprocessable) {
			t.Fatalf("Apply() error = %v, want ErrUnprocessable", err)
		}
		if after := fileDataJSON(t, fd); after != before {
			t.Errorf("file after failed apply = %s, want %s", after, before)
		}
	})
}

func TestTextOperation_Invert(t *testing.T) {
	t.Run("restores plain text", func(t *testing.T) {
		prev := core.NewStringFileData("hello world", nil, nil)
		op := core.NewTextOperation().Retain(5).Remove(6).Insert("!")
		inverse := op.Invert(prev)

		fd := prev.Clone().(*core.StringFileData)
		if err := op.Apply(fd); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if err := inverse.Apply(fd); err != nil {
			t.Fatalf("Apply(inverse) error = %v", err)
		}
		if fd.Content() != "hello world" {
			t.Errorf("Content() = %q, want %q", fd.Content(), "hello world")
		}
	})

	t.Run("restores comments and tracked changes", func(t *testing.T) {
		prev := core.NewStringFileData(
			"hello world",
			core.NewCommentList(core.NewComment("c1", []core.Range{rng(0, 5)}, false)),
			core.NewTrackedChangeList(core.TrackedChange{Range: rng(6, 5), Tracking: insertBy("u1", t1)}),
		)
		want := fileDataJSON(t, prev)
		op := core.NewTextOperation().Remove(11)
		inverse := op.Invert(prev)

		fd := prev.Clone().(*core.StringFileData)
		if err := op.Apply(fd); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if err := inverse.Apply(fd); err != nil {
			t.Fatalf("Apply(inverse) error = %v", err)
		}
		if got := fileDataJSON(t, fd); got != want {
			t.Errorf("restored = %s, want %s", got, want)
		}
	})

	t.Run("restores tracking changed by a retain", func(t *testing.T) {
		prev := core.NewStringFileData(
			"abcdef",
			nil,
			core.NewTrackedChangeList(core.TrackedChange{Range: rng(2, 2), Tracking: insertBy("u1", t1)}),
		)
		want := fileDataJSON(t, prev)
		op := core.NewTextOperation().RetainTracked(6, deleteBy("u2", t2))
		inverse := op.Invert(prev)

		fd := prev.Clone().(*core.StringFileData)
		if err := op.Apply(fd); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if err := inverse.Apply(fd); err != nil {
			t.Fatalf("Apply(inverse) error = %v", err)
		}
		if got := fileDataJSON(t, fd); got != want {
			t.Errorf("restored = %s, want %s", got, want)
		}
	})
}

func TestTextOperation_Compose(t *testing.T) {
	t.Run("equivalent to sequential application", func(t *testing.T) {
		a := core.NewTextOperation().Retain(5).Insert(" world")
		b := core.NewTextOperation().Remove(1).Insert("j").Retain(10).Insert("!")
		ab, err := a.Compose(b)
		if err != nil {
			t.Fatalf("Compose() error = %v", err)
		}
		got, err := ab.ApplyToString("hello")
		if err != nil {
			t.Fatalf("ApplyToString() error = %v", err)
		}
		if got != "jello world!" {
			t.Errorf("composed result = %q, want %q", got, "jello world!")
		}
	})

	t.Run("later tracking wins", func(t *testing.T) {
		a := core.NewTextOperation().InsertWith("ab", insertBy("u1", t1), nil)
		b := core.NewTextOperation().RetainTracked(2, core.ClearTrackingProps{})
		ab, err := a.Compose(b)
		if err != nil {
			t.Fatalf("Compose() error = %v", err)
		}
		if got := opJSON(t, ab); got != `["ab"]` {
			t.Errorf("composed = %s, want [\"ab\"]", got)
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		a := core.NewTextOperation().Retain(2)
		b := core.NewTextOperation().Retain(3)
		if a.CanBeComposedWith(b) {
			t.Error("CanBeComposedWith() = true, want false")
		}
		if _, err := a.Compose(b); err == nil {
			t.Error("Compose() error = nil, want error")
		}
	})
}

func TestTransformText(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		a, b *core.TextOperation
		want string
	}{
		{
			"concurrent inserts at the same offset",
			"hello",
			core.NewTextOperation().Retain(5).Insert("A"),
			core.NewTextOperation().Retain(5).Insert("B"),
			"helloAB",
		},
		{
			"insert inside a removed span",
			"abcdef",
			core.NewTextOperation().Retain(3).Insert("X").Retain(3),
			core.NewTextOperation().Retain(1).Remove(4).Retain(1),
			"aXf",
		},
		{
			"overlapping removes",
			"abcdef",
			core.NewTextOperation().Retain(1).Remove(3).Retain(2),
			core.NewTextOperation().Retain(2).Remove(3).Retain(1),
			"af",
		},
		{
			"tracked retain against insert",
			"abcdef",
			core.NewTextOperation().RetainTracked(6, deleteBy("u1", t1)),
			core.NewTextOperation().Retain(3).Insert("X").Retain(3),
			"abcXdef",
		},
		{
			"conflicting tracking",
			"abcdef",
			core.NewTextOperation().Retain(1).RetainTracked(3, deleteBy("u1", t1)).Retain(2),
			core.NewTextOperation().Retain(2).RetainTracked(3, insertBy("u2", t2)).Retain(1),
			"abcdef",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			aPrime, bPrime, err := core.TransformText(tt.a, tt.b)
			if err != nil {
				t.Fatalf("TransformText() error = %v", err)
			}

			left := core.NewStringFileData(tt.doc, nil, nil)
			for _, op := range []*core.TextOperation{tt.a, bPrime} {
				if err := op.Apply(left); err != nil {
					t.Fatalf("a then b' error = %v", err)
				}
			}
			right := core.NewStringFileData(tt.doc, nil, nil)
			for _, op := range []*core.TextOperation{tt.b, aPrime} {
				if err := op.Apply(right); err != nil {
					t.Fatalf("b then a' error = %v", err)
				}
			}

			if left.Content() != tt.want {
				t.Errorf("content = %q, want %q", left.Content(), tt.want)
			}
			if l, r := fileDataJSON(t, left), fileDataJSON(t, right); l != r {
				t.Errorf("a then b' = %s, b then a' = %s", l, r)
			}
		})
	}

	t.Run("base length mismatch", func(t *testing.T) {
		_, _, err := core.TransformText(core.NewTextOperation().Retain(1), core.NewTextOperation().Retain(2))
		if err == nil {
			t.Error("TransformText() error = nil, want error")
		}
	})
}
