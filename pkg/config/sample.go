package config

import (
	"fmt"
	"os"
)

const sampleConfig = `# datastash configuration

logging:
  level: INFO       # DEBUG, INFO, WARN, ERROR
  format: text      # text, json
  output: stdout    # stdout, stderr, or a file path

storage:
  # Private directory holding the datasets, cache and temporary partitions.
  # root: /var/lib/datastash
  cache_quota: 256MB   # 0 disables LRU eviction
  default_ttl: 24h     # applied to cache entries stored without a TTL

query:
  result_ttl: 1h

sync:
  queue_size: 256
  completed_log_size: 128
  # journal_dir persists pending sync tasks across restarts.
  # journal_dir: /var/lib/datastash/journal

origin:
  enabled: false
  s3:
    bucket: ""
    region: us-east-1
    # endpoint: http://localhost:9000
    # key_prefix: datasets/
    # force_path_style: true

api:
  enabled: true
  port: 8650
  read_timeout: 10s
  write_timeout: 30s

metrics:
  enabled: true

shutdown_timeout: 30s
`

// WriteSample writes a commented sample configuration file. It refuses
// to overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
