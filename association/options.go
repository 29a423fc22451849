package association

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cast"
	"github.com/younglifestyle/dicom4go/acse"
	"github.com/younglifestyle/dicom4go/common"
	"github.com/younglifestyle/dicom4go/pdu"
	"github.com/younglifestyle/dicom4go/transport"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAETitle                   = "DICOM4GO"
	DefaultMaxPDULength              = 16382
	DefaultImplementationClassUID    = "1.2.826.0.1.3680043.10.1119.1"
	DefaultImplementationVersionName = "DICOM4GO_010"
)

// Options configures one association. Every timeout is independently
// overridable; 0 disables the DIMSE and network timeouts.
type Options struct {
	AETitle                   string
	ImplementationClassUID    string
	ImplementationVersionName string

	ACSETimeout    time.Duration
	DIMSETimeout   time.Duration
	NetworkTimeout time.Duration
	ARTIMTimeout   time.Duration
	ConnectTimeout time.Duration

	// MaxPDULength is the largest P-DATA-TF payload we declare and accept.
	// 0 declares no limit.
	MaxPDULength uint32

	Logger   common.Logger
	Dialer   transport.Dialer
	Handlers map[string][]common.Handler
}

type Option func(*Options)

func DefaultOptions() Options {
	t := common.NewTimeouts()
	return Options{
		AETitle:                   DefaultAETitle,
		ImplementationClassUID:    DefaultImplementationClassUID,
		ImplementationVersionName: DefaultImplementationVersionName,
		ACSETimeout:               t.ACSE(),
		DIMSETimeout:              t.DIMSE(),
		NetworkTimeout:            t.Network(),
		ARTIMTimeout:              t.ARTIM(),
		ConnectTimeout:            t.Connect(),
		MaxPDULength:              DefaultMaxPDULength,
		Logger:                    common.NopLogger(),
	}
}

func WithAETitle(ae string) Option {
	return func(o *Options) { o.AETitle = ae }
}

func WithImplementation(classUID, versionName string) Option {
	return func(o *Options) {
		o.ImplementationClassUID = classUID
		o.ImplementationVersionName = versionName
	}
}

func WithACSETimeout(d time.Duration) Option {
	return func(o *Options) { o.ACSETimeout = d }
}

func WithDIMSETimeout(d time.Duration) Option {
	return func(o *Options) { o.DIMSETimeout = d }
}

func WithNetworkTimeout(d time.Duration) Option {
	return func(o *Options) { o.NetworkTimeout = d }
}

func WithARTIMTimeout(d time.Duration) Option {
	return func(o *Options) { o.ARTIMTimeout = d }
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}

func WithMaxPDULength(n uint32) Option {
	return func(o *Options) { o.MaxPDULength = n }
}

func WithLogger(l common.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithDialer replaces the TCP dialer used by Request.
func WithDialer(d transport.Dialer) Option {
	return func(o *Options) { o.Dialer = d }
}

// WithHandlers binds fns to event on every association created with it.
func WithHandlers(event string, fns ...common.Handler) Option {
	return func(o *Options) {
		if o.Handlers == nil {
			o.Handlers = make(map[string][]common.Handler)
		}
		o.Handlers[event] = append(o.Handlers[event], fns...)
	}
}

// WithOptions replaces every field with base; later options still apply.
func WithOptions(base Options) Option {
	return func(o *Options) { *o = base }
}

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	o.Logger = common.OrNop(o.Logger)
	return o
}

func (o Options) timeouts() *common.Timeouts {
	t := common.NewTimeouts()
	t.SetACSE(o.ACSETimeout)
	t.SetDIMSE(o.DIMSETimeout)
	t.SetNetwork(o.NetworkTimeout)
	t.SetARTIM(o.ARTIMTimeout)
	t.SetConnect(o.ConnectTimeout)
	return t
}

func (o Options) userInformation() *pdu.UserInformation {
	ui := &pdu.UserInformation{Items: []pdu.SubItem{&pdu.MaximumLength{Length: o.MaxPDULength}}}
	if o.ImplementationClassUID != "" {
		ui.Items = append(ui.Items, &pdu.ImplementationClassUID{UID: o.ImplementationClassUID})
	}
	if o.ImplementationVersionName != "" {
		ui.Items = append(ui.Items, &pdu.ImplementationVersionName{Name: o.ImplementationVersionName})
	}
	return ui
}

// Config is the YAML file layout read by LoadConfig.
type Config struct {
	Options Options
	Server  ServerConfig
}

type fileContext struct {
	AbstractSyntax   string   `yaml:"abstract_syntax"`
	TransferSyntaxes []string `yaml:"transfer_syntaxes"`
}

type fileServer struct {
	Listen               string        `yaml:"listen"`
	Workers              interface{}   `yaml:"workers"`
	EchoSCP              bool          `yaml:"echo_scp"`
	RequireCalledAETitle bool          `yaml:"require_called_ae_title"`
	CallingAETitles      []string      `yaml:"calling_ae_titles"`
	Contexts             []fileContext `yaml:"contexts"`
}

type fileConfig struct {
	AETitle                   string      `yaml:"ae_title"`
	ImplementationClassUID    string      `yaml:"implementation_class_uid"`
	ImplementationVersionName string      `yaml:"implementation_version_name"`
	ACSETimeout               interface{} `yaml:"acse_timeout"`
	DIMSETimeout              interface{} `yaml:"dimse_timeout"`
	NetworkTimeout            interface{} `yaml:"network_timeout"`
	ARTIMTimeout              interface{} `yaml:"artim_timeout"`
	ConnectTimeout            interface{} `yaml:"connect_timeout"`
	MaxPDULength              interface{} `yaml:"max_pdu_length"`

	Logging *common.ZapLoggerOptions `yaml:"logging"`
	Server  *fileServer              `yaml:"server"`
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("association: read config: %w", err)
	}
	return ParseConfig(data)
}

// LoadOptions reads only the association options of a configuration file.
func LoadOptions(path string) (Options, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return Options{}, err
	}
	return cfg.Options, nil
}

// ParseConfig decodes YAML. Timeouts are seconds (number) or Go duration
// strings; a logging section builds a zap logger.
func ParseConfig(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("association: parse config: %w", err)
	}

	cfg := &Config{Options: DefaultOptions()}
	o := &cfg.Options
	if fc.AETitle != "" {
		o.AETitle = fc.AETitle
	}
	if fc.ImplementationClassUID != "" {
		o.ImplementationClassUID = fc.ImplementationClassUID
	}
	if fc.ImplementationVersionName != "" {
		o.ImplementationVersionName = fc.ImplementationVersionName
	}

	for _, d := range []struct {
		name  string
		value interface{}
		dst   *time.Duration
	}{
		{"acse_timeout", fc.ACSETimeout, &o.ACSETimeout},
		{"dimse_timeout", fc.DIMSETimeout, &o.DIMSETimeout},
		{"network_timeout", fc.NetworkTimeout, &o.NetworkTimeout},
		{"artim_timeout", fc.ARTIMTimeout, &o.ARTIMTimeout},
		{"connect_timeout", fc.ConnectTimeout, &o.ConnectTimeout},
	} {
		if d.value == nil {
			continue
		}
		v, err := toDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("association: %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if fc.MaxPDULength != nil {
		n, err := cast.ToUint32E(fc.MaxPDULength)
		if err != nil {
			return nil, fmt.Errorf("association: max_pdu_length: %w", err)
		}
		o.MaxPDULength = n
	}
	if fc.Logging != nil {
		o.Logger = common.NewZapLogger(*fc.Logging)
	}

	if fc.Server != nil {
		s := &cfg.Server
		s.Addr = fc.Server.Listen
		s.EchoSCP = fc.Server.EchoSCP
		s.RequireCalledAETitle = fc.Server.RequireCalledAETitle
		s.CallingAETitles = fc.Server.CallingAETitles
		if fc.Server.Workers != nil {
			n, err := cast.ToIntE(fc.Server.Workers)
			if err != nil {
				return nil, fmt.Errorf("association: server.workers: %w", err)
			}
			s.Workers = n
		}
		for _, c := range fc.Server.Contexts {
			ts := c.TransferSyntaxes
			if len(ts) == 0 {
				ts = acse.DefaultTransferSyntaxes
			}
			s.Supported = append(s.Supported, acse.PresentationContext{
				AbstractSyntax:   c.AbstractSyntax,
				TransferSyntaxes: append([]string{}, ts...),
			})
		}
	}
	return cfg, nil
}

// toDuration reads plain numbers as seconds and other strings as Go
// durations.
func toDuration(v interface{}) (time.Duration, error) {
	if s, ok := v.(string); ok {
		if f, err := cast.ToFloat64E(s); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
		return cast.ToDurationE(s)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}
