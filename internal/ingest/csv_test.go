package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postcodecheck/addresscleaner/internal/domain"
)

func collect(t *testing.T, src *CSVSource) ([]domain.ReferenceRecord, error) {
	t.Helper()
	var out []domain.ReferenceRecord
	err := src.Each(context.Background(), func(r domain.ReferenceRecord) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

func TestCSVSource_ReadsByHeaderName(t *testing.T) {
	data := "numbertype;street;postcode;city;maxnumber;minnumber;municipality\n" +
		"even;Dorpstraat;1234AB;Amsterdam;40;2;Amsterdam\n" +
		"odd;\"Burg. de Withstraat\";5611AB;Eindhoven;99;1;\n"

	records, err := collect(t, NewCSVReader("refs.csv", strings.NewReader(data)))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, domain.NewReferenceRecord("1234AB", "Dorpstraat", "Amsterdam", "Amsterdam", domain.NumberTypeEven, 2, 40), records[0])
	assert.Equal(t, "Burg. de Withstraat", records[1].Street)
	assert.Equal(t, domain.NumberTypeOdd, records[1].NumberType)
	assert.Empty(t, records[1].Municipality)
	assert.NotEmpty(t, records[1].ID)
}

func TestCSVSource_MunicipalityIsOptional(t *testing.T) {
	data := "\ufeffPostcode;City;Street;NumberType;MinNumber;MaxNumber\n1234AB;Ede;Kerkweg;mixed;1;9\n"

	records, err := collect(t, NewCSVReader("refs.csv", strings.NewReader(data)))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Kerkweg", records[0].Street)
	assert.Equal(t, domain.NumberTypeMixed, records[0].NumberType)
}

func TestCSVSource_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		msg  string
	}{
		{"empty", "", "empty file"},
		{"missing columns", "postcode;city;street\n", "lacks columns: numbertype, minnumber, maxnumber"},
		{"bad minnumber", "postcode;city;street;numbertype;minnumber;maxnumber\n1234AB;Ede;Kerkweg;odd;1;9\n1234AB;Ede;Kerkweg;odd;x;9\n", "line 3: parse minnumber"},
		{"bad numbertype", "postcode;city;street;numbertype;minnumber;maxnumber\n1234AB;Ede;Kerkweg;prime;1;9\n", "line 2: unknown numbertype"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, NewCSVReader("refs.csv", strings.NewReader(tt.data)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCSVSource_CallbackErrorStops(t *testing.T) {
	data := "postcode;city;street;numbertype;minnumber;maxnumber\n1234AB;Ede;Kerkweg;odd;1;9\n1234AC;Ede;Kerkweg;even;2;8\n"
	stop := errors.New("stop")

	calls := 0
	err := NewCSVReader("refs.csv", strings.NewReader(data)).Each(context.Background(), func(domain.ReferenceRecord) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestCSVSource_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.csv")
	require.NoError(t, os.WriteFile(path, []byte("postcode;city;street;numbertype;minnumber;maxnumber\n1234AB;Ede;Kerkweg;odd;1;9\n"), 0o600))

	src := NewCSVFile(path)
	assert.Equal(t, "csv "+path, src.Name())

	records, err := collect(t, src)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = collect(t, NewCSVFile(filepath.Join(t.TempDir(), "absent.csv")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSVSource_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := "postcode;city;street;numbertype;minnumber;maxnumber\n1234AB;Ede;Kerkweg;odd;1;9\n"
	err := NewCSVReader("refs.csv", strings.NewReader(data)).Each(ctx, func(domain.ReferenceRecord) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
