package textvalue

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "textvalue")

// init routes logrus output to stdout for easier log capture.
func init() {
	logrus.SetOutput(os.Stdout)
}

// SetLogOutput redirects the package's log output, e.g. to io.Discard in tests.
func SetLogOutput(w io.Writer) {
	logrus.SetOutput(w)
}
