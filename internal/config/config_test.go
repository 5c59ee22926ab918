package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadDecodesTOML(t *testing.T) {
	toml := []byte(`
cycle_time = "2ms"
watchdog_timeout = "6ms"
max_overrun = "1ms"

[fieldbus]
driver = "ethercat"

[fieldbus.ethercat]
interface = "eth0"
wkc_error_threshold = 5
`)
	cfg, err := Load(toml)
	require.NoError(t, err)
	require.Equal(t, 2*time.Millisecond, cfg.CycleTime.D())
	require.Equal(t, DriverEtherCAT, cfg.Fieldbus.Driver)
	require.Equal(t, "eth0", cfg.Fieldbus.EtherCAT.Interface)
	require.Equal(t, 5, cfg.Fieldbus.EtherCAT.WkcErrorThreshold)
}

func TestValidateRejectsWatchdogNotExceedingCycle(t *testing.T) {
	cfg := Default()
	cfg.WatchdogTimeout = cfg.CycleTime
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEtherCATWithoutInterface(t *testing.T) {
	cfg := Default()
	cfg.Fieldbus.Driver = DriverEtherCAT
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPriority(t *testing.T) {
	cfg := Default()
	cfg.Realtime.Enabled = true
	cfg.Realtime.Priority = 150
	require.Error(t, cfg.Validate())
}
