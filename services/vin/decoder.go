// Package vin decodes VINs through the NHTSA vPIC API.
package vin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rtauto/dealer-admin/services"
	"github.com/rtauto/dealer-admin/utils"
)

// vPIC variable ids
const (
	varBodyClass    = 5
	varEngineConfig = 13
	varDoors        = 14
	varDriveType    = 15
	varDisplacement = 18
	varCylinders    = 21
	varFuelType     = 24
	varMake         = 26
	varModel        = 28
	varModelYear    = 29
	varSeats        = 33
	varTransmission = 37
	varTrim         = 38
)

const notApplicable = "Not Applicable"

// Result is a decoded VIN, shaped for the vehicle form.
type Result struct {
	VIN             string `json:"vin"`
	Year            int    `json:"year,omitempty"`
	Make            string `json:"make,omitempty"`
	Model           string `json:"model,omitempty"`
	Trim            string `json:"trim,omitempty"`
	BodyType        string `json:"body_type,omitempty"`
	Engine          string `json:"engine,omitempty"`
	Transmission    string `json:"transmission,omitempty"`
	Drivetrain      string `json:"drivetrain,omitempty"`
	FuelType        string `json:"fuel_type,omitempty"`
	DoorCount       *int   `json:"door_count,omitempty"`
	SeatingCapacity *int   `json:"seating_capacity,omitempty"`
	DecodeString    string `json:"decode_string,omitempty"`
}

type vpicResponse struct {
	Results []struct {
		Value      *string `json:"Value"`
		VariableID int     `json:"VariableId"`
	} `json:"Results"`
}

// Decoder calls vPIC. Concurrent lookups of the same VIN share one request.
type Decoder struct {
	baseURL    string
	httpClient *http.Client
	group      singleflight.Group
	logger     *zap.Logger
}

// NewDecoder creates a decoder against baseURL, e.g. https://vpic.nhtsa.dot.gov/api.
func NewDecoder(baseURL string, timeout time.Duration, logger *zap.Logger) *Decoder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Decoder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Decode looks up vin. Malformed VINs are a validation error and upstream
// failures an external error.
func (d *Decoder) Decode(ctx context.Context, vin string) (*Result, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if !utils.IsVIN(vin) {
		return nil, services.ErrInvalidVIN
	}

	ch := d.group.DoChan(vin, func() (interface{}, error) {
		// detached so one caller cancelling does not fail the others
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.httpClient.Timeout)
		defer cancel()
		return d.fetch(fetchCtx, vin)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := *res.Val.(*Result)
		return &out, nil
	}
}

func (d *Decoder) fetch(ctx context.Context, vin string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/vehicles/decodevin/%s?format=json", d.baseURL, url.PathEscape(vin))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.WrapInternal("failed to build decode request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warn("vin decode request failed", zap.String("vin", vin), zap.Error(err))
		return nil, services.WrapExternal(services.ErrDecoderUnavailable.Message, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("vin decoder returned error status", zap.String("vin", vin), zap.Int("status", resp.StatusCode))
		return nil, services.WrapExternal(services.ErrDecoderUnavailable.Message,
			fmt.Errorf("vpic status %d", resp.StatusCode))
	}

	var body vpicResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, services.WrapExternal(services.ErrDecoderUnavailable.Message, fmt.Errorf("decode vpic response: %w", err))
	}

	values := make(map[int]string, len(body.Results))
	for _, r := range body.Results {
		if r.Value == nil {
			continue
		}
		v := strings.TrimSpace(*r.Value)
		if v == "" || v == notApplicable {
			continue
		}
		values[r.VariableID] = v
	}

	return buildResult(vin, values), nil
}

func buildResult(vin string, values map[int]string) *Result {
	r := &Result{
		VIN:          vin,
		Make:         values[varMake],
		Model:        values[varModel],
		Trim:         values[varTrim],
		BodyType:     MapBodyType(values[varBodyClass]),
		Engine:       engineDescription(values),
		Transmission: values[varTransmission],
		Drivetrain:   values[varDriveType],
		FuelType:     MapFuelType(values[varFuelType]),
	}
	if y, err := strconv.Atoi(values[varModelYear]); err == nil {
		r.Year = y
	}
	r.DoorCount = optionalInt(values[varDoors])
	r.SeatingCapacity = optionalInt(values[varSeats])

	parts := []string{}
	if r.Year != 0 {
		parts = append(parts, strconv.Itoa(r.Year))
	}
	for _, p := range []string{r.Make, r.Model, r.Trim} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	r.DecodeString = strings.Join(parts, " ")
	return r
}

// engineDescription joins configuration, displacement and cylinders, e.g. "V-Shaped 3.5L 6".
func engineDescription(values map[int]string) string {
	var parts []string
	if v := values[varEngineConfig]; v != "" {
		parts = append(parts, v)
	}
	if v := values[varDisplacement]; v != "" {
		parts = append(parts, v+"L")
	}
	if v := values[varCylinders]; v != "" {
		parts = append(parts, v)
	}
	return strings.Join(parts, " ")
}

func optionalInt(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// MapBodyType reduces a vPIC body class to one of models.BodyTypes.
// Empty input maps to empty.
func MapBodyType(bodyClass string) string {
	if bodyClass == "" {
		return ""
	}
	t := strings.ToLower(bodyClass)
	switch {
	case strings.Contains(t, "sedan"):
		return "sedan"
	case strings.Contains(t, "suv"), strings.Contains(t, "sport utility"):
		return "suv"
	case strings.Contains(t, "truck"), strings.Contains(t, "pickup"):
		return "truck"
	case strings.Contains(t, "coupe"):
		return "coupe"
	case strings.Contains(t, "convertible"):
		return "convertible"
	case strings.Contains(t, "wagon"):
		return "wagon"
	case strings.Contains(t, "van"):
		return "van"
	case strings.Contains(t, "hatchback"):
		return "hatchback"
	case strings.Contains(t, "crossover"), strings.Contains(t, "cuv"):
		return "crossover"
	}
	return "other"
}

// MapFuelType reduces a vPIC fuel type to one of models.FuelTypes, or "".
func MapFuelType(fuel string) string {
	t := strings.ToLower(fuel)
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "plug-in"):
		return "Plug-in Hybrid"
	case strings.Contains(t, "hybrid"):
		return "Hybrid"
	case strings.Contains(t, "flex"):
		return "Flex Fuel"
	case strings.Contains(t, "electric"):
		return "Electric"
	case strings.Contains(t, "diesel"):
		return "Diesel"
	case strings.Contains(t, "gasoline"):
		return "Gasoline"
	}
	return ""
}
