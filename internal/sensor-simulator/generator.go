package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Tunables for the random walk, per minute of elapsed time.
const (
	tempDrift  = 0.4
	humDrift   = 1.2
	moistDecay = 0.05 // soil dries slowly between waterings
	lightNoise = 40.0
)

// Payload is the wire shape a real device publishes.
type Payload struct {
	Temperature  float64 `json:"temperature"`
	AirHumidity  float64 `json:"air_humidity"`
	SoilMoisture float64 `json:"soil_moisture"`
	Light        float64 `json:"light"`
	Timestamp    string  `json:"timestamp"`
}

// Generator produces slowly drifting plant telemetry for one fake device.
// Light follows a day curve; the other channels random-walk inside
// plausible greenhouse bounds.
type Generator struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	temp  float64
	hum   float64
	moist float64
	last  time.Time
}

func NewGenerator(seed int64) *Generator {
	rnd := rand.New(rand.NewSource(seed))
	return &Generator{
		rnd:   rnd,
		temp:  20 + rnd.Float64()*6,
		hum:   45 + rnd.Float64()*20,
		moist: 35 + rnd.Float64()*30,
	}
}

// Next advances the walk to now and returns a publishable payload.
func (g *Generator) Next(now time.Time) Payload {
	g.mu.Lock()
	defer g.mu.Unlock()

	dtMin := 1.0
	if !g.last.IsZero() {
		dtMin = now.Sub(g.last).Minutes()
		if dtMin < 0 {
			dtMin = 0
		}
	}
	g.last = now

	g.temp = clamp(g.temp+g.step(tempDrift)*dtMin, 10, 35)
	g.hum = clamp(g.hum+g.step(humDrift)*dtMin, 20, 90)
	g.moist = clamp(g.moist-moistDecay*dtMin+g.step(0.2)*dtMin, 5, 95)

	// Peak around 13:00, zero at night.
	hour := float64(now.Hour()) + float64(now.Minute())/60
	day := math.Sin((hour - 6) / 14 * math.Pi)
	light := clamp(900*day+g.rnd.Float64()*lightNoise, 0, 1000)

	return Payload{
		Temperature:  round1(g.temp),
		AirHumidity:  round1(g.hum),
		SoilMoisture: round1(g.moist),
		Light:        round1(light),
		Timestamp:    now.UTC().Format(time.RFC3339),
	}
}

func (g *Generator) step(scale float64) float64 {
	return (g.rnd.Float64()*2 - 1) * scale
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
