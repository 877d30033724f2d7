package clickhouse

import (
	"testing"
	"time"

	"RiskPulse/pkg/config"
)

func TestBuildDSN(t *testing.T) {
	cases := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{
			name: "native with settings",
			cfg: ClientConfig{
				Host: "ch", Port: 9000, Database: "riskpulse", User: "default", Password: "p@ss",
				DialTimeout: 5 * time.Second, ReadTimeout: 10 * time.Second, MaxExecTime: time.Minute,
				AsyncInsert: true, WaitForAsync: true,
			},
			want: "clickhouse://default:p%40ss@ch:9000/riskpulse?async_insert=1&dial_timeout=5s&max_execution_time=60&read_timeout=10s&wait_for_async_insert=1",
		},
		{
			name: "http bare",
			cfg:  ClientConfig{Host: "localhost", Port: 8123, Database: "default", User: "u", UseHTTP: true},
			want: "http://u:@localhost:8123/default",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := BuildDSN(c.cfg); got != c.want {
				t.Fatalf("BuildDSN = %q, want %q", got, c.want)
			}
		})
	}
}

func TestFromConfigAppliesSection(t *testing.T) {
	section := config.Default().ClickHouse
	section.Host = "clickhouse.internal"
	section.ReadTimeout = 0

	cfg := ClientConfig{ReadTimeout: 7 * time.Second}
	for _, opt := range FromConfig(section) {
		opt(&cfg)
	}
	if cfg.Host != "clickhouse.internal" || cfg.Database != section.Database || cfg.Port != section.Port {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.ReadTimeout != 7*time.Second {
		t.Fatalf("zero read timeout overrode default: %s", cfg.ReadTimeout)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}
