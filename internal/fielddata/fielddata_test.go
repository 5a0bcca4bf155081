package fielddata

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    FieldData
		wantErr bool
	}{
		{
			name:  "two pairs",
			input: "Name: Jane Doe, Email: jane@example.com",
			want:  FieldData{"Name": "Jane Doe", "Email": "jane@example.com"},
		},
		{
			name:  "value with colon",
			input: "Time: 10:30",
			want:  FieldData{"Time": "10:30"},
		},
		{
			name:  "pair without colon skipped",
			input: "Name: Jane, garbage",
			want:  FieldData{"Name": "Jane"},
		},
		{
			name:    "nothing usable",
			input:   "no pairs here",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseString(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmpty)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromJSON(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		d, err := FromJSON(strings.NewReader(`{"full_name": "Jane", "age": 42, "member": true, "notes": null}`))
		require.NoError(t, err)
		assert.Equal(t, FieldData{"full_name": "Jane", "age": "42", "member": "true"}, d)
	})

	t.Run("collected answers", func(t *testing.T) {
		d, err := FromJSON(strings.NewReader(`{"form_id": "x", "collected_answers": {"city": "Oslo"}}`))
		require.NoError(t, err)
		assert.Equal(t, FieldData{"city": "Oslo"}, d)
	})

	t.Run("list kept as json", func(t *testing.T) {
		d, err := FromJSON(strings.NewReader(`{"langs": ["en", "no"]}`))
		require.NoError(t, err)
		assert.Equal(t, `["en","no"]`, d["langs"])
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := FromJSON(strings.NewReader(`{"a":`))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := FromJSON(strings.NewReader(`{}`))
		assert.ErrorIs(t, err, ErrEmpty)
	})
}

func TestFromCSV(t *testing.T) {
	d, err := FromCSV(strings.NewReader("Field,Value\nFull Name,Jane Doe\n\"Address\",\"1 Main St, Oslo\"\nlonely\n"))
	require.NoError(t, err)
	assert.Equal(t, FieldData{"Full Name": "Jane Doe", "Address": "1 Main St, Oslo"}, d)

	_, err = FromCSV(strings.NewReader("Field,Value\n"))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/answers.json", []byte(`{"collected_answers": {"name": "Jane"}}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/answers.yaml", []byte("name: Jane\nage: 42\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/answers.csv", []byte("name,Jane\n"), 0o644))

	tests := []struct {
		path string
		want FieldData
	}{
		{"/data/answers.json", FieldData{"name": "Jane"}},
		{"/data/answers.yaml", FieldData{"name": "Jane", "age": "42"}},
		{"/data/answers.csv", FieldData{"name": "Jane"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			d, err := LoadFile(fs, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d)
		})
	}

	_, err := LoadFile(fs, "/data/missing.json")
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	d := FieldData{"Full Name": "Jane", "date_of_birth": "1990-01-01"}

	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"Full Name", "Jane", true},
		{"full_name", "Jane", true},
		{"FULL  NAME", "Jane", true},
		{"Date of Birth", "1990-01-01", true},
		{"email", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := d.Lookup(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Full Name", Humanize("full_name"))
	assert.Equal(t, "Email", Humanize("email"))

	h := FieldData{"first_name": "Jane"}.Humanized()
	assert.Equal(t, FieldData{"First Name": "Jane"}, h)
}

func TestString(t *testing.T) {
	d := FieldData{"b": "2", "a": "1"}
	assert.Equal(t, "a: 1, b: 2", d.String())

	back, err := ParseString(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, back)
}
