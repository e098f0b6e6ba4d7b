package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestConstraintError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ConstraintError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with table and column",
			err:      &ConstraintError{Kind: "primary key", Table: "Foo", Column: "Id", Message: "duplicate value 1"},
			wantMsg:  "primary key constraint violated on Foo.Id: duplicate value 1",
			wantBase: ErrConstraint,
		},
		{
			name:     "without table",
			err:      &ConstraintError{Kind: "value set", Message: "value not allowed"},
			wantMsg:  "value set constraint violated: value not allowed",
			wantBase: ErrConstraint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlying := fmt.Errorf("disk full")
		err := &ConstraintError{Kind: "length", Table: "Foo", Column: "Name", Message: "too long", Err: underlying}
		if got := err.Unwrap(); got != underlying {
			t.Errorf("Unwrap() = %v, want %v", got, underlying)
		}
	})
}

func TestQueryError(t *testing.T) {
	err := NewQuery("SELECT * FROM T WHERE x = 1 = 2", 28, "comparison operators do not associate")
	want := "query error at 28: comparison operators do not associate"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrQuery) {
		t.Errorf("expected errors.Is(err, ErrQuery)")
	}
}

func TestIOError(t *testing.T) {
	underlying := fmt.Errorf("permission denied")
	err := NewIO("write", "_StringData", underlying)
	want := `failed to write stream "_StringData": permission denied`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Errorf("Wrap(nil, ...) should return nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Errorf("Wrapf(nil, ...) should return nil")
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	base := NewSchema("Foo", "Id", "duplicate column")
	wrapped := Wrap(base, "creating table")
	if !Is(wrapped, ErrSchema) {
		t.Errorf("expected Is(wrapped, ErrSchema)")
	}
	var schemaErr *SchemaError
	if !As(wrapped, &schemaErr) {
		t.Errorf("expected As to unwrap to *SchemaError")
	}
	if schemaErr.Table != "Foo" {
		t.Errorf("schemaErr.Table = %q, want Foo", schemaErr.Table)
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("transform application", "MST patching is out of scope")
	want := "unsupported transform application: MST patching is out of scope"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
