package content

import (
	"os"
	"testing"

	"github.com/smartreview/platform/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}
