package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("builder sets fields", func(t *testing.T) {
		cause := stderrors.New("exec: not found")
		err := ToolchainError("engine not found").
			WithCause(cause).
			WithContext("tool", "pdflatex").
			Build()

		assert.Equal(t, CategoryToolchain, err.Category())
		assert.Equal(t, SeverityError, err.Severity())
		assert.Equal(t, "engine not found", err.Message())
		assert.ErrorIs(t, err, cause)

		tool, ok := err.Context().GetString("tool")
		require.True(t, ok)
		assert.Equal(t, "pdflatex", tool)
	})

	t.Run("config errors are fatal", func(t *testing.T) {
		err := ConfigError("bad interpreter").Build()
		assert.True(t, err.IsFatal())
		assert.Contains(t, err.Error(), "[config:fatal] bad interpreter")
	})

	t.Run("classification survives wrapping", func(t *testing.T) {
		inner := FileSystemError("cannot create synctex dir").Build()
		wrapped := fmt.Errorf("forward sync: %w", inner)

		assert.True(t, HasCategory(wrapped, CategoryFileSystem))
		assert.Equal(t, CategoryFileSystem, GetCategory(wrapped))
		c, ok := AsClassified(wrapped)
		require.True(t, ok)
		assert.Same(t, inner, c)
	})

	t.Run("unclassified errors default to internal", func(t *testing.T) {
		assert.Equal(t, CategoryInternal, GetCategory(stderrors.New("boom")))
		assert.False(t, HasCategory(nil, CategoryConfig))
	})

	t.Run("joined errors are searched per branch", func(t *testing.T) {
		joined := stderrors.Join(
			stderrors.New("plain"),
			ValidationError("build.interpreter: invalid").Build(),
		)
		wrapped := fmt.Errorf("load: %w", joined)

		assert.True(t, HasCategory(joined, CategoryValidation))
		assert.True(t, HasCategory(wrapped, CategoryValidation))
		assert.False(t, HasCategory(wrapped, CategoryConfig))
		assert.Equal(t, CategoryValidation, GetCategory(wrapped))
	})
}

func TestCLIErrorAdapter_ExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	cases := []struct {
		err  error
		code int
	}{
		{nil, 0},
		{stderrors.New("plain"), 1},
		{ValidationError("x").Build(), 2},
		{NotFoundError("x").Build(), 3},
		{ConfigError("x").Build(), 7},
		{ToolchainError("x").Build(), 11},
		{InternalError("x").Build(), 10},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, a.ExitCodeFor(tc.err), "error %v", tc.err)
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	err := ToolchainError("engine not found").WithContext("tool", "xelatex").Build()
	assert.Equal(t, "Error: engine not found (xelatex)", quiet.FormatError(err))

	verbose := NewCLIErrorAdapter(true, nil)
	assert.Contains(t, verbose.FormatError(err), "[toolchain:error]")
	assert.Empty(t, quiet.FormatError(nil))
}

func TestHTTPErrorAdapter(t *testing.T) {
	a := NewHTTPErrorAdapter(nil)
	assert.Equal(t, http.StatusBadRequest, a.StatusCodeFor(ValidationError("x").Build()))
	assert.Equal(t, http.StatusNotFound, a.StatusCodeFor(NotFoundError("x").Build()))
	assert.Equal(t, http.StatusInternalServerError, a.StatusCodeFor(stderrors.New("x")))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/build", nil)
	a.WriteErrorResponse(rec, req, ValidationError("root file required").Build())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"root file required","code":"validation"}`, rec.Body.String())
}
