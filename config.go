package coap

import (
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// TransmissionParameters are the RFC 7252 §4.8 knobs governing
// retransmission and response waits. The zero value means "use defaults".
type TransmissionParameters struct {
	// AckTimeout is the lower bound of the initial retransmission
	// interval for confirmable requests.
	AckTimeout time.Duration

	// AckRandomFactor stretches the initial interval to
	// [AckTimeout, AckTimeout*AckRandomFactor). Must be >= 1.
	AckRandomFactor float64

	// MaxRetransmit is the number of retransmissions after the initial
	// send before the exchange fails with a timeout.
	MaxRetransmit int

	// ResponseTimeout bounds the wait for a separate response or for the
	// response to a non-confirmable request.
	ResponseTimeout time.Duration
}

// DefaultTransmissionParameters returns the RFC defaults.
func DefaultTransmissionParameters() TransmissionParameters {
	return TransmissionParameters{
		AckTimeout:      DefaultAckTimeout,
		AckRandomFactor: DefaultAckRandomFactor,
		MaxRetransmit:   DefaultMaxRetransmit,
		ResponseTimeout: DefaultResponseTimeout,
	}
}

// withDefaults fills zero fields with the RFC defaults.
func (p TransmissionParameters) withDefaults() TransmissionParameters {
	if p.AckTimeout == 0 {
		p.AckTimeout = DefaultAckTimeout
	}
	if p.AckRandomFactor == 0 {
		p.AckRandomFactor = DefaultAckRandomFactor
	}
	if p.MaxRetransmit == 0 {
		p.MaxRetransmit = DefaultMaxRetransmit
	}
	if p.ResponseTimeout == 0 {
		p.ResponseTimeout = DefaultResponseTimeout
	}
	return p
}

// Validate rejects parameter sets the state machine cannot run with.
func (p TransmissionParameters) Validate() error {
	if p.AckTimeout <= 0 {
		return fmt.Errorf("coap: ack timeout must be positive, got %v", p.AckTimeout)
	}
	if p.AckRandomFactor < 1 {
		return fmt.Errorf("coap: ack random factor must be >= 1, got %v", p.AckRandomFactor)
	}
	if p.MaxRetransmit < 0 {
		return fmt.Errorf("coap: max retransmit must not be negative, got %d", p.MaxRetransmit)
	}
	if p.ResponseTimeout <= 0 {
		return fmt.Errorf("coap: response timeout must be positive, got %v", p.ResponseTimeout)
	}
	return nil
}

// parametersFile is the YAML shape of a transmission parameter file.
// Durations are millisecond integers.
type parametersFile struct {
	AckTimeoutMS      int     `yaml:"ack_timeout_ms"`
	AckRandomFactor   float64 `yaml:"ack_random_factor"`
	MaxRetransmit     int     `yaml:"max_retransmit"`
	ResponseTimeoutMS int     `yaml:"response_timeout_ms"`
}

// LoadParameters reads transmission parameters from a YAML file. Absent
// fields keep their RFC defaults; the result is validated.
//
//	ack_timeout_ms: 2000
//	ack_random_factor: 1.5
//	max_retransmit: 4
//	response_timeout_ms: 30000
func LoadParameters(path string) (TransmissionParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TransmissionParameters{}, err
	}
	var f parametersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return TransmissionParameters{}, fmt.Errorf("coap: parsing %s: %w", path, err)
	}
	p := TransmissionParameters{
		AckTimeout:      time.Duration(f.AckTimeoutMS) * time.Millisecond,
		AckRandomFactor: f.AckRandomFactor,
		MaxRetransmit:   f.MaxRetransmit,
		ResponseTimeout: time.Duration(f.ResponseTimeoutMS) * time.Millisecond,
	}.withDefaults()
	if err := p.Validate(); err != nil {
		return TransmissionParameters{}, err
	}
	return p, nil
}

// Config configures a Client. The zero value is usable: RFC transmission
// parameters, no logging, the real clock.
type Config struct {
	// Parameters are the transmission parameters. Zero fields take the
	// RFC defaults.
	Parameters TransmissionParameters

	// Logger receives engine diagnostics. Nil disables logging.
	Logger *zap.Logger

	// Clock drives the retransmission and response timers. Nil means the
	// real clock; tests inject a fake.
	Clock clockwork.Clock

	// for testing purposes only: deterministic message-ID/token source
	rand *randSource
}
