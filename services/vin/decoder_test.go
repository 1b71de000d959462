package vin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/services"
)

const accordResponse = `{
  "Count": 12,
  "Message": "Results returned successfully",
  "Results": [
    {"Value": "2003", "ValueId": "", "Variable": "Model Year", "VariableId": 29},
    {"Value": "HONDA", "ValueId": "474", "Variable": "Make", "VariableId": 26},
    {"Value": "Accord", "ValueId": "1861", "Variable": "Model", "VariableId": 28},
    {"Value": "EX-V6", "ValueId": "", "Variable": "Trim", "VariableId": 38},
    {"Value": "Coupe", "ValueId": "3", "Variable": "Body Class", "VariableId": 5},
    {"Value": "V-Shaped", "ValueId": "", "Variable": "Engine Configuration", "VariableId": 13},
    {"Value": "3.0", "ValueId": "", "Variable": "Displacement (L)", "VariableId": 18},
    {"Value": "6", "ValueId": "", "Variable": "Engine Number of Cylinders", "VariableId": 21},
    {"Value": "Automatic", "ValueId": "2", "Variable": "Transmission Style", "VariableId": 37},
    {"Value": "Not Applicable", "ValueId": "", "Variable": "Drive Type", "VariableId": 15},
    {"Value": "Gasoline", "ValueId": "4", "Variable": "Fuel Type - Primary", "VariableId": 24},
    {"Value": "2", "ValueId": "", "Variable": "Doors", "VariableId": 14},
    {"Value": null, "ValueId": "", "Variable": "Number of Seats", "VariableId": 33}
  ]
}`

func newTestDecoder(t *testing.T, handler http.HandlerFunc) *Decoder {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewDecoder(server.URL+"/", 2*time.Second, zap.NewNop())
}

func TestDecode(t *testing.T) {
	d := newTestDecoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vehicles/decodevin/1HGCM82633A004352", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(accordResponse))
	})

	res, err := d.Decode(context.Background(), " 1hgcm82633a004352 ")
	require.NoError(t, err)

	assert.Equal(t, "1HGCM82633A004352", res.VIN)
	assert.Equal(t, 2003, res.Year)
	assert.Equal(t, "HONDA", res.Make)
	assert.Equal(t, "Accord", res.Model)
	assert.Equal(t, "EX-V6", res.Trim)
	assert.Equal(t, "coupe", res.BodyType)
	assert.Equal(t, "V-Shaped 3.0L 6", res.Engine)
	assert.Equal(t, "Automatic", res.Transmission)
	assert.Empty(t, res.Drivetrain)
	assert.Equal(t, "Gasoline", res.FuelType)
	require.NotNil(t, res.DoorCount)
	assert.Equal(t, 2, *res.DoorCount)
	assert.Nil(t, res.SeatingCapacity)
	assert.Equal(t, "2003 HONDA Accord EX-V6", res.DecodeString)
}

func TestDecode_AcceptsAnyAlphanumericVIN(t *testing.T) {
	d := newTestDecoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vehicles/decodevin/1FTEW1EP5IKD12345", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(accordResponse))
	})

	res, err := d.Decode(context.Background(), "1FTEW1EP5IKD12345")
	require.NoError(t, err)
	assert.Equal(t, "1FTEW1EP5IKD12345", res.VIN)
}

func TestDecode_InvalidVIN(t *testing.T) {
	var calls int32
	d := newTestDecoder(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	for _, vin := range []string{"", "SHORT", "1HGCM82633A0043521", "1HGCM82633#004352"} {
		_, err := d.Decode(context.Background(), vin)
		assert.True(t, services.IsValidationError(err), vin)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestDecode_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDecoder(t, tt.handler)
			_, err := d.Decode(context.Background(), "1HGCM82633A004352")
			assert.True(t, services.IsExternalError(err))
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		d := NewDecoder("http://127.0.0.1:1", time.Second, zap.NewNop())
		_, err := d.Decode(context.Background(), "1HGCM82633A004352")
		assert.True(t, services.IsExternalError(err))
	})
}

func TestDecode_CoalescesConcurrentLookups(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	d := newTestDecoder(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(accordResponse))
	})

	var wg sync.WaitGroup
	results := make([]*Result, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := d.Decode(context.Background(), "1HGCM82633A004352")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "Accord", r.Model)
	}
	// callers get independent copies
	results[0].Model = "changed"
	assert.Equal(t, "Accord", results[1].Model)
}

func TestDecode_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	d := newTestDecoder(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := d.Decode(ctx, "1HGCM82633A004352")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMapBodyType(t *testing.T) {
	tests := map[string]string{
		"":                                   "",
		"Sedan/Saloon":                       "sedan",
		"Sport Utility Vehicle (SUV)/Multi-Purpose Vehicle (MPV)": "suv",
		"Pickup":                             "truck",
		"Truck-Tractor":                      "truck",
		"Coupe":                              "coupe",
		"Convertible/Cabriolet":              "convertible",
		"Wagon":                              "wagon",
		"Minivan":                            "van",
		"Hatchback/Liftback/Notchback":       "hatchback",
		"Crossover Utility Vehicle (CUV)":    "crossover",
		"Low Speed Vehicle (LSV)":            "other",
	}
	for in, want := range tests {
		assert.Equal(t, want, MapBodyType(in), in)
	}
}

func TestMapFuelType(t *testing.T) {
	tests := map[string]string{
		"":                                    "",
		"Gasoline":                            "Gasoline",
		"Diesel":                              "Diesel",
		"Electric":                            "Electric",
		"Flexible Fuel Vehicle (FFV)":         "Flex Fuel",
		"Plug-in Hybrid Electric Vehicle (PHEV)": "Plug-in Hybrid",
		"Hybrid Electric Vehicle (HEV)":       "Hybrid",
		"Compressed Natural Gas (CNG)":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, MapFuelType(in), in)
	}
}
