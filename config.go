package mct

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/minminlittleshrimp/mct-go/internal/transport"
)

// LocalPrintMode controls the MCT_LOCAL_PRINT_MODE mirror-to-stdout
// supplemented feature.
type LocalPrintMode int

const (
	LocalPrintAutomatic LocalPrintMode = iota
	LocalPrintForceOn
	LocalPrintForceOff
)

// Config is every environment-derived knob the library reads once at
// init (spec §6 — "all reads happen at init; later changes are
// ignored"), mirroring the teacher's DeviceParams/DefaultParams shape.
type Config struct {
	AppID             string // MCT_APP_ID override for register_app
	InitialLogLevel   string // MCT_INITIAL_LOG_LEVEL, "APID:CTID:level;..."
	LocalPrintMode    LocalPrintMode
	ForceBlocking     bool
	RingMinSize       int
	RingMaxSize       int
	RingStepSize      int
	StagingBufLen     int // MCT_LOG_MSG_BUF_LEN, <= 65535
	DisableExtendedHeaderForNonVerbose bool
	DisableInjectionMsgAtUser          bool

	// EcuID is carried in the standard header's WEID extra and stamped
	// into the storage header of direct-to-file output. ConfigFromEnv
	// takes it from MCT_ECU_ID when that is set; otherwise callers set it
	// programmatically or leave the default.
	EcuID string

	// WithEcuID/WithSessionID/WithTimestamp select which of the standard
	// header's optional extras (spec §3/§4.1) this process emits. All
	// three default on, matching the worked example of spec §8 S1.
	WithEcuID      bool
	WithSessionID  bool
	WithTimestamp  bool

	// BigEndian selects the MSBF bit for every message this process
	// emits. Cross-compiled targets set this explicitly; it has no
	// environment-variable knob because the spec ties it to the target's
	// native byte order, decided at build time, not at runtime.
	BigEndian bool

	// AtExitDrainTimeout bounds the best-effort ring drain Close performs
	// before reporting how many messages remained undelivered (spec §4.8,
	// default 0, commonly ~1s).
	AtExitDrainTimeout time.Duration

	Transport transport.Config
}

const (
	defaultRingMinSize   = 4096
	defaultRingMaxSize   = 10 * 1024 * 1024
	defaultRingStepSize  = 4096
	defaultStagingBufLen = 1400
	defaultEcuID         = "ECU1"
)

// DefaultConfig returns the configuration the library would use with no
// environment variables set: a Unix-socket transport at /tmp/mct,
// non-blocking mode, and a 4KB-to-10MB ring.
func DefaultConfig() *Config {
	return &Config{
		RingMinSize:        defaultRingMinSize,
		RingMaxSize:        defaultRingMaxSize,
		RingStepSize:       defaultRingStepSize,
		StagingBufLen:      defaultStagingBufLen,
		EcuID:              defaultEcuID,
		WithEcuID:          true,
		WithSessionID:      true,
		WithTimestamp:      true,
		AtExitDrainTimeout: 0,
		Transport: transport.Config{
			Flavor:  transport.FlavorUnixSocket,
			IPCPath: "/tmp",
		},
	}
}

// ConfigFromEnv builds a Config from the environment variables spec §6
// lists, falling back to DefaultConfig's values for anything unset or
// unparseable.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	cfg.AppID = os.Getenv("MCT_APP_ID")
	cfg.InitialLogLevel = os.Getenv("MCT_INITIAL_LOG_LEVEL")
	if ecu := os.Getenv("MCT_ECU_ID"); ecu != "" {
		cfg.EcuID = ecu
	}

	switch strings.ToUpper(os.Getenv("MCT_LOCAL_PRINT_MODE")) {
	case "FORCE_ON":
		cfg.LocalPrintMode = LocalPrintForceOn
	case "FORCE_OFF":
		cfg.LocalPrintMode = LocalPrintForceOff
	default:
		cfg.LocalPrintMode = LocalPrintAutomatic
	}

	cfg.ForceBlocking = envBool("MCT_FORCE_BLOCKING")

	if v, ok := envInt("MCT_USER_BUFFER_MIN"); ok {
		cfg.RingMinSize = v
	}
	if v, ok := envInt("MCT_USER_BUFFER_MAX"); ok {
		cfg.RingMaxSize = v
	}
	if v, ok := envInt("MCT_USER_BUFFER_STEP"); ok {
		cfg.RingStepSize = v
	}
	if v, ok := envInt("MCT_LOG_MSG_BUF_LEN"); ok && v > 0 && v <= 65535 {
		cfg.StagingBufLen = v
	}

	cfg.DisableExtendedHeaderForNonVerbose = envBool("MCT_DISABLE_EXTENDED_HEADER_FOR_NONVERBOSE")
	cfg.DisableInjectionMsgAtUser = envBool("MCT_DISABLE_INJECTION_MSG_AT_USER")

	if dir := os.Getenv("MCT_PIPE_DIR"); dir != "" {
		cfg.Transport.Flavor = transport.FlavorFifo
		cfg.Transport.FifoBase = dir
	}

	return cfg
}

func envBool(key string) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
