package identity

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ralt/rpmsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistTag(t *testing.T) {
	tests := []struct {
		release string
		dist    string
		ok      bool
	}{
		{"1.cm2", "cm2", true},
		{"1.el7", "el7", true},
		{"3.fc40.1", "fc40", true},
		{"12.el9_3", "el9_3", true},
		{"1", "", false},
		{"", "", false},
		{"beta.el7", "", false},
		{"1.", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.release, func(t *testing.T) {
			dist, ok := DistTag(tt.release)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.dist, dist)
		})
	}
}

func TestNewDerivesDist(t *testing.T) {
	id := New("azurelinux", "1.0", "1.cm2", "x86_64")
	assert.True(t, id.HasDist())
	assert.Equal(t, "cm2", id.Dist)

	id = New("nodistributioninfo", "1.0", "1", "x86_64")
	assert.False(t, id.HasDist())
	assert.Empty(t, id.Dist)
}

func TestFilename(t *testing.T) {
	id := New("first", "1.0", "1.cm2", "x86_64")
	assert.Equal(t, "first-1.0-1.cm2.x86_64.rpm", id.Filename())

	// Missing architecture still yields a deterministic name.
	id = New("noarch", "2.0", "", "")
	assert.Equal(t, "noarch-2.0-..rpm", id.Filename())
}

func TestRPMReaderRejectsGarbage(t *testing.T) {
	_, err := RPMReader{}.Read(bytes.NewReader([]byte("definitely not an rpm package, just some text")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMalformedPackage))
}

func TestRPMReaderRejectsEmpty(t *testing.T) {
	_, err := RPMReader{}.Read(bytes.NewReader(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMalformedPackage))
}

func readTestRPM(t *testing.T, name string) (Identity, error) {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()
	return RPMReader{}.Read(f)
}

func TestRPMReaderReadsHeader(t *testing.T) {
	tests := []struct {
		file string
		want Identity
	}{
		{
			file: "simple-1.0.1-1.i386.rpm",
			want: Identity{Name: "simple", Version: "1.0.1", Release: "1", Arch: "i386"},
		},
		{
			file: "simple-1.0.1-1.cm2.i386.rpm",
			want: Identity{Name: "simple", Version: "1.0.1", Release: "1.cm2", Arch: "i386", Dist: "cm2"},
		},
		{
			// Header without release and arch tags
			file: "bare-simple.rpm",
			want: Identity{Name: "simple", Version: "1.0.1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			id, err := readTestRPM(t, tt.file)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestRPMReaderFilenameRoundTrip(t *testing.T) {
	id, err := readTestRPM(t, "simple-1.0.1-1.cm2.i386.rpm")
	require.NoError(t, err)
	assert.Equal(t, "simple-1.0.1-1.cm2.i386.rpm", id.Filename())
}

func TestRPMReaderRejectsTruncatedHeader(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "simple-1.0.1-1.i386.rpm"))
	require.NoError(t, err)

	_, err = RPMReader{}.Read(bytes.NewReader(data[:200]))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMalformedPackage))
}
