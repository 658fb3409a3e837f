package rawxfer

/*------------------------------------------------------------------
 *
 * Purpose:	Settings shared by the sender and receiver.
 *
 * Description:	Everything has a sensible default so no file is needed.
 *		A YAML file can change the defaults for a site, and
 *		command line options override both.
 *
 *		Example rawxfer.yaml:
 *
 *			byte_timeout: 20s
 *			inter_file_timeout: 60s
 *			chunk_size: 1024
 *			comm_log: comm.log
 *			device: /dev/ttyUSB0
 *			speed: 9600
 *
 *------------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const DEFAULT_BYTE_TIMEOUT = 20 * time.Second

const DEFAULT_CHUNK_SIZE = 1024

const DEFAULT_COMM_LOG = "comm.log"

const DEFAULT_SYSLOG_TAG = "rawxfer"

type Config struct {
	ByteTimeout      time.Duration `yaml:"byte_timeout"`       /* Longest silence allowed within a file. */
	InterFileTimeout time.Duration `yaml:"inter_file_timeout"` /* Longest wait for the next batch header.  0 means same as ByteTimeout. */
	ChunkSize        int           `yaml:"chunk_size"`         /* Sender drains the output after this many bytes. */

	CommLog   string `yaml:"comm_log"`   /* Empty means syslog only. */
	SyslogTag string `yaml:"syslog_tag"` /* Used when comm_log can't be opened. */

	Device  string `yaml:"device"`  /* Serial port instead of stdin/stdout. */
	Speed   int    `yaml:"speed"`   /* bps, 0 leaves the port alone. */
	Connect string `yaml:"connect"` /* host:port to dial instead. */
	Listen  string `yaml:"listen"`  /* Address to accept one connection on. */

	Debug bool `yaml:"debug"`

	file string /* Configuration file actually read, if any. */
}

func config_default() *Config {
	return &Config{
		ByteTimeout: DEFAULT_BYTE_TIMEOUT,
		ChunkSize:   DEFAULT_CHUNK_SIZE,
		CommLog:     DEFAULT_COMM_LOG,
		SyslogTag:   DEFAULT_SYSLOG_TAG,
	}
}

// First one found wins.
var config_search_locations = []string{
	"rawxfer.yaml", // Current working directory
	"~/.rawxfer.yaml",
	"/usr/local/etc/rawxfer.yaml",
	"/etc/rawxfer.yaml",
}

/*------------------------------------------------------------------
 *
 * Function:	config_load
 *
 * Purpose:	Defaults, overlaid with a configuration file if any.
 *
 * Inputs:	path	- Explicit file from -c.  Must exist.
 *			  Empty string means look in the usual places,
 *			  and carry on with defaults if there is none.
 *
 *------------------------------------------------------------------*/

func config_load(path string) (*Config, error) {
	var cfg = config_default()

	if path != "" {
		if err := config_read_file(cfg, path); err != nil {
			return nil, err
		}
		cfg.file = path
		return cfg, cfg.check()
	}

	for _, location := range config_search_locations {
		var expanded = expand_home(location)
		var err = config_read_file(cfg, expanded)
		if err == nil {
			diag.Debug("configuration", "file", expanded)
			cfg.file = expanded
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return cfg, cfg.check()
}

func config_read_file(cfg *Config, path string) error {
	var data, err = os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("configuration file %s: %w", path, err)
	}

	return nil
}

func expand_home(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}

	var home, err = os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}

func (cfg *Config) check() error {
	if cfg.ByteTimeout <= 0 {
		return fmt.Errorf("byte timeout must be positive, got %s", cfg.ByteTimeout)
	}
	if cfg.InterFileTimeout < 0 {
		return fmt.Errorf("inter-file timeout can't be negative, got %s", cfg.InterFileTimeout)
	}
	if cfg.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}

	var links = 0
	for _, s := range []string{cfg.Device, cfg.Connect, cfg.Listen} {
		if s != "" {
			links++
		}
	}
	if links > 1 {
		return errors.New("use only one of device, connect and listen")
	}

	return nil
}

// inter_file_timeout applies the "same as byte timeout" default.
func (cfg *Config) inter_file_timeout() time.Duration {
	if cfg.InterFileTimeout == 0 {
		return cfg.ByteTimeout
	}

	return cfg.InterFileTimeout
}

/*------------------------------------------------------------------
 *
 * Function:	reserved_name
 *
 * Purpose:	Is this a file a batch sender must not be allowed to
 *		overwrite?
 *
 * Description:	Batch files land in the working directory, which is
 *		also where the session log and usually the configuration
 *		live.  A received file called comm.log would wipe the
 *		record of the session.
 *
 *------------------------------------------------------------------*/

func (cfg *Config) reserved_name(name string) bool {
	var ours = []string{cfg.CommLog, config_search_locations[0]}
	if cfg.file != "" {
		ours = append(ours, cfg.file)
	}

	for _, path := range ours {
		if path != "" && same_path(name, path) {
			return true
		}
	}

	return false
}

func same_path(a, b string) bool {
	var absA, errA = filepath.Abs(a)
	var absB, errB = filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}

	return absA == absB
}

/*------------------------------------------------------------------
 *
 * Function:	config_flags
 *
 * Purpose:	Command line options common to all the programs.
 *
 * Description:	The flags are registered with the defaults only for the
 *		help text.  After parsing, config_apply_flags copies over
 *		just the ones actually given, so the file is not
 *		clobbered by flag defaults.
 *
 *------------------------------------------------------------------*/

type configFlags struct {
	file string

	byteTimeout      time.Duration
	interFileTimeout time.Duration
	chunkSize        int
	commLog          string
	device           string
	speed            int
	connect          string
	listen           string
	debug            bool
}

func config_flags(flags *pflag.FlagSet) *configFlags {
	var cf = new(configFlags)
	var def = config_default()

	flags.StringVarP(&cf.file, "config", "c", "", "Configuration file.  Default is to look for rawxfer.yaml.")
	flags.DurationVarP(&cf.byteTimeout, "timeout", "t", def.ByteTimeout, "Give up after this long with nothing received.")
	flags.DurationVar(&cf.interFileTimeout, "inter-file-timeout", 0, "Wait this long for the next file of a batch.  Default is --timeout.")
	flags.IntVar(&cf.chunkSize, "chunk-size", def.ChunkSize, "Wait for output to drain after this many bytes.")
	flags.StringVar(&cf.commLog, "comm-log", def.CommLog, "Transfer log file.  Empty to use syslog.")
	flags.StringVar(&cf.device, "device", "", "Serial port to use instead of stdin/stdout, e.g. /dev/ttyUSB0")
	flags.IntVar(&cf.speed, "speed", 0, "Serial port speed, bps.  0 leaves it alone.")
	flags.StringVar(&cf.connect, "connect", "", "Use a TCP connection to host:port instead of stdin/stdout.")
	flags.StringVar(&cf.listen, "listen", "", "Accept one TCP connection on this address instead of stdin/stdout.")
	flags.BoolVarP(&cf.debug, "debug", "d", false, "Print debugging information on stderr.")

	return cf
}

func config_apply_flags(cfg *Config, flags *pflag.FlagSet, cf *configFlags) error {
	if flags.Changed("timeout") {
		cfg.ByteTimeout = cf.byteTimeout
	}
	if flags.Changed("inter-file-timeout") {
		cfg.InterFileTimeout = cf.interFileTimeout
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = cf.chunkSize
	}
	if flags.Changed("comm-log") {
		cfg.CommLog = cf.commLog
	}
	if flags.Changed("device") {
		cfg.Device = cf.device
	}
	if flags.Changed("speed") {
		cfg.Speed = cf.speed
	}
	if flags.Changed("connect") {
		cfg.Connect = cf.connect
	}
	if flags.Changed("listen") {
		cfg.Listen = cf.listen
	}
	if flags.Changed("debug") {
		cfg.Debug = cf.debug
	}

	return cfg.check()
}

// config_from_flags loads the file named by -c (or found by searching)
// and then applies the command line.
func config_from_flags(flags *pflag.FlagSet, cf *configFlags) (*Config, error) {
	var cfg, err = config_load(cf.file)
	if err != nil {
		return nil, err
	}

	if err := config_apply_flags(cfg, flags, cf); err != nil {
		return nil, err
	}

	return cfg, nil
}
