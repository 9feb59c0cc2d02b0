package dtlsengine

import "github.com/suzu-dev/wurtc/internal/logx"

var pionLoggerFactory = logx.PionFactory{}
