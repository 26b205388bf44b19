package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestContextLoggerCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := base.WithContext(context.Background())

	ctx = WithLogger(ctx, map[string]interface{}{"job_id": "abc"})
	InfoLog(ctx, "converted %d rows", 3)
	ErrorErr(ctx, errors.New("denied"), "upload failed")
	ErrorLog(ctx, "retry %d of %d", 1, 3)

	out := buf.String()
	assert.Contains(t, out, `"job_id":"abc"`)
	assert.Contains(t, out, `"message":"converted 3 rows"`)
	assert.Contains(t, out, `"error":"denied"`)
	assert.Contains(t, out, `"message":"upload failed"`)
	assert.Contains(t, out, `"message":"retry 1 of 3"`)
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	l := FromContext(context.Background())
	assert.NotEqual(t, zerolog.Disabled, l.GetLevel())
}
