package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	conf := core.NewTestConfig()
	logger := NewRollbarLogger(log.New(&buf, "", 0), conf)

	logger.Debug("hidden")
	assert.Empty(t, buf.String(), "debug entries are skipped when not in debug mode")

	usr := user.User{ID: 3, Username: "jdoe"}
	logger.Error("boom", errors.New("db down"), usr)
	assert.Equal(t, "ERROR boom\n\tdb down\n\tuser: 3 (jdoe)\n", buf.String())

	buf.Reset()
	conf.Debug = true
	logger = NewRollbarLogger(log.New(&buf, "", 0), conf)
	logger.Debug("shown")
	assert.Equal(t, "DEBUG shown\n", buf.String())
}
