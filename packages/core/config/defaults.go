package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultReportFile  = "target/report.html"
	DefaultLogLevel    = "info"
	DefaultConcurrency = 5
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("baseurl", "")
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("ratelimit", 0)
	v.SetDefault("reportfile", DefaultReportFile)
	v.SetDefault("historyfile", "")
	v.SetDefault("loglevel", DefaultLogLevel)
	v.SetDefault("parallel", false)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("bail", false)
	v.SetDefault("followredirects", true)
}

// Starter is the config.properties written by `apicheck init`.
const Starter = `# apicheck configuration
BaseURL=https://restcountries.com/v3.1
Timeout=30s
# Requests per second, 0 disables limiting
RateLimit=0
ReportFile=target/report.html
# HistoryFile=.apicheck/history.db
LogLevel=info
Parallel=false
Concurrency=5
Bail=false
Headers.Accept=application/json
`

// WriteStarter writes Starter to path. An existing file is kept unless force is set.
func WriteStarter(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists", path)
	}
	return os.WriteFile(path, []byte(Starter), 0644)
}
