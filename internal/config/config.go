package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/Versifine/strider/internal/body"
	"github.com/Versifine/strider/internal/gait"
	"github.com/Versifine/strider/internal/leg"
	"github.com/Versifine/strider/internal/rig"
	"github.com/Versifine/strider/internal/sim"
	"github.com/Versifine/strider/internal/world"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "config.schema.json"

type Config struct {
	Logging  LoggingConfig       `yaml:"logging" json:"logging"`
	Sim      sim.Config          `yaml:"sim" json:"sim"`
	Body     body.Config         `yaml:"body" json:"body"`
	Legs     leg.Config          `yaml:"legs" json:"legs"`
	Gait     gait.Config         `yaml:"gait" json:"gait"`
	Rig      rig.Config          `yaml:"rig" json:"rig"`
	Terrain  world.TerrainConfig `yaml:"terrain" json:"terrain"`
	Trace    TraceConfig         `yaml:"trace" json:"trace"`
	Index    IndexConfig         `yaml:"index" json:"index"`
	Stream   StreamConfig        `yaml:"stream" json:"stream"`
	Scenario ScenarioConfig      `yaml:"scenario" json:"scenario"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// TraceConfig enables the compressed tick trace; Every keeps one frame in N.
type TraceConfig struct {
	Path  string `yaml:"path" json:"path"`
	Every int    `yaml:"every" json:"every"`
}

type IndexConfig struct {
	Path string `yaml:"path" json:"path"`
}

type StreamConfig struct {
	Listen string `yaml:"listen" json:"listen"`
}

type ScenarioConfig struct {
	Script string `yaml:"script" json:"script"`
}

func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "auto"},
		Sim:     sim.DefaultConfig(),
		Body:    body.DefaultConfig(),
		Legs:    leg.DefaultConfig(),
		Gait:    gait.DefaultConfig(),
		Rig:     rig.DefaultConfig(),
		Terrain: world.DefaultTerrain(),
		Trace:   TraceConfig{Every: 1},
		Stream:  StreamConfig{Listen: "127.0.0.1:8765"},
	}
}

// Load reads a YAML file and applies key=value overrides. Keys are dotted paths such as
// body.move_speed or rig.legs.0.group; values that parse as JSON keep their type, anything
// else is a string.
func Load(path string, overrides ...string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, overrides...)
}

func Parse(data []byte, overrides ...string) (*Config, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert config to json: %w", err)
	}

	for _, kv := range overrides {
		raw, err = applyOverride(raw, kv)
		if err != nil {
			return nil, err
		}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	cfg := Default()
	// Lists replace the defaults rather than merging into them element by element.
	if gjson.GetBytes(raw, "rig.legs").Exists() {
		cfg.Rig.Legs = nil
	}
	if gjson.GetBytes(raw, "rig.layers").Exists() {
		cfg.Rig.Layers = nil
	}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverride(raw []byte, kv string) ([]byte, error) {
	key, value, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return nil, fmt.Errorf("override %q is not key=value", kv)
	}
	if json.Valid([]byte(value)) {
		return sjson.SetRawBytes(raw, key, []byte(value))
	}
	return sjson.SetBytes(raw, key, value)
}

func validateSchema(raw []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return fmt.Errorf("load config schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode config json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	return nil
}

// Validate runs the semantic checks the schema cannot express.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	errs := []error{
		c.Sim.Validate(),
		c.Body.Validate(),
		c.Legs.Validate(),
		c.Gait.Validate(),
		c.Terrain.Validate(),
	}
	if len(c.Rig.Legs) > 0 {
		if _, err := rig.BuildLayout(c.Rig.Legs); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Trace.Every < 1 {
		errs = append(errs, fmt.Errorf("trace.every must be at least 1, got %d", c.Trace.Every))
	}
	return errors.Join(errs...)
}

// RigOptions gathers the sections the rig is built from.
func (c *Config) RigOptions() rig.Options {
	return rig.Options{Rig: c.Rig, Body: c.Body, Leg: c.Legs, Gait: c.Gait}
}
