package association

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/younglifestyle/dicom4go/acse"
	"github.com/younglifestyle/dicom4go/pdu"
)

func TestDefaultOptions(t *testing.T) {
	o := buildOptions(nil)
	assert.Equal(t, DefaultAETitle, o.AETitle)
	assert.Equal(t, 30*time.Second, o.ACSETimeout)
	assert.Equal(t, 30*time.Second, o.DIMSETimeout)
	assert.Equal(t, 60*time.Second, o.NetworkTimeout)
	assert.Equal(t, 30*time.Second, o.ARTIMTimeout)
	assert.Equal(t, uint32(DefaultMaxPDULength), o.MaxPDULength)
	assert.NotNil(t, o.Logger)

	o = buildOptions([]Option{WithAETitle("STORESCU"), WithDIMSETimeout(0), WithMaxPDULength(0), WithLogger(nil)})
	assert.Equal(t, "STORESCU", o.AETitle)
	assert.Equal(t, time.Duration(0), o.DIMSETimeout)
	assert.Equal(t, uint32(0), o.MaxPDULength)
	assert.NotNil(t, o.Logger)
}

func TestUserInformation(t *testing.T) {
	ui := buildOptions([]Option{WithMaxPDULength(32768)}).userInformation()
	n, ok := ui.MaximumLength()
	require.True(t, ok)
	assert.Equal(t, uint32(32768), n)
	assert.Equal(t, DefaultImplementationClassUID, ui.ImplementationClassUID())
	assert.Equal(t, DefaultImplementationVersionName, ui.ImplementationVersionName())

	ui = buildOptions([]Option{WithImplementation("1.2.3", "")}).userInformation()
	assert.Equal(t, "1.2.3", ui.ImplementationClassUID())
	assert.Empty(t, ui.ImplementationVersionName())
	assert.Len(t, ui.Items, 2)
	_, isMax := ui.Items[0].(*pdu.MaximumLength)
	assert.True(t, isMax)
}

func TestParseConfig(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
ae_title: STORESCP
implementation_version_name: STORE_1
acse_timeout: 10
dimse_timeout: "1.5"
network_timeout: 2m
artim_timeout: 0
max_pdu_length: "65536"
server:
  listen: ":11112"
  workers: "8"
  echo_scp: true
  require_called_ae_title: true
  calling_ae_titles: [MODALITY1, MODALITY2]
  contexts:
    - abstract_syntax: 1.2.840.10008.5.1.4.1.1.2
    - abstract_syntax: 1.2.840.10008.1.1
      transfer_syntaxes: [1.2.840.10008.1.2]
`))
		require.NoError(t, err)

		o := cfg.Options
		assert.Equal(t, "STORESCP", o.AETitle)
		assert.Equal(t, DefaultImplementationClassUID, o.ImplementationClassUID)
		assert.Equal(t, "STORE_1", o.ImplementationVersionName)
		assert.Equal(t, 10*time.Second, o.ACSETimeout)
		assert.Equal(t, 1500*time.Millisecond, o.DIMSETimeout)
		assert.Equal(t, 2*time.Minute, o.NetworkTimeout)
		assert.Equal(t, time.Duration(0), o.ARTIMTimeout)
		assert.Equal(t, 30*time.Second, o.ConnectTimeout)
		assert.Equal(t, uint32(65536), o.MaxPDULength)

		s := cfg.Server
		assert.Equal(t, ":11112", s.Addr)
		assert.Equal(t, 8, s.Workers)
		assert.True(t, s.EchoSCP)
		assert.True(t, s.RequireCalledAETitle)
		assert.Equal(t, []string{"MODALITY1", "MODALITY2"}, s.CallingAETitles)
		require.Len(t, s.Supported, 2)
		assert.Equal(t, acse.DefaultTransferSyntaxes, s.Supported[0].TransferSyntaxes)
		assert.Equal(t, []string{"1.2.840.10008.1.2"}, s.Supported[1].TransferSyntaxes)
	})

	t.Run("empty keeps defaults", func(t *testing.T) {
		cfg, err := ParseConfig(nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultOptions().ACSETimeout, cfg.Options.ACSETimeout)
		assert.Equal(t, DefaultAETitle, cfg.Options.AETitle)
		assert.Empty(t, cfg.Server.Addr)
	})

	t.Run("errors", func(t *testing.T) {
		for name, doc := range map[string]string{
			"bad yaml":       "ae_title: [",
			"bad timeout":    "acse_timeout: soon",
			"bad max length": "max_pdu_length: big",
			"bad workers":    "server:\n  workers: many",
		} {
			t.Run(name, func(t *testing.T) {
				_, err := ParseConfig([]byte(doc))
				assert.Error(t, err)
			})
		}
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dicom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ae_title: FILESCU\nconnect_timeout: 5s\n"), 0o644))

	o, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, "FILESCU", o.AETitle)
	assert.Equal(t, 5*time.Second, o.ConnectTimeout)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
