// Package artifacts reads and writes the model files the service loads at startup.
//
// Every artifact is a JSON envelope {kind, id, created_at, model} validated against an
// embedded JSON schema for its kind before the model is decoded.
package artifacts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Kind names an artifact family.
type Kind string

const (
	KindIsolationForest Kind = "isolation_forest"
	KindCharVectorizer  Kind = "char_vectorizer"
	KindMultinomialNB   Kind = "multinomial_nb"
	KindDigestBaseline  Kind = "digest_baseline"
	KindPlaceholder     Kind = "placeholder"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemasOnce sync.Once
	schemas     map[Kind]*jsonschema.Schema
	schemasErr  error
)

// Envelope is the on-disk wrapper around every model.
type Envelope struct {
	Kind      Kind            `json:"kind"`
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Model     json.RawMessage `json:"model,omitempty"`
}

func compileSchemas() (map[Kind]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		compiled := make(map[Kind]*jsonschema.Schema)
		for _, kind := range []Kind{KindIsolationForest, KindCharVectorizer, KindMultinomialNB, KindDigestBaseline, KindPlaceholder} {
			name := "schemas/" + string(kind) + ".schema.json"
			data, err := schemaFS.ReadFile(name)
			if err != nil {
				schemasErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			compiler := jsonschema.NewCompiler()
			compiler.Draft = jsonschema.Draft2020
			if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
				schemasErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
			schema, err := compiler.Compile(name)
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			compiled[kind] = schema
		}
		schemas = compiled
	})
	return schemas, schemasErr
}

// Validate checks raw artifact bytes against the schema for kind.
func Validate(kind Kind, data []byte) error {
	compiled, err := compileSchemas()
	if err != nil {
		return err
	}
	schema, ok := compiled[kind]
	if !ok {
		return fmt.Errorf("unknown artifact kind %q", kind)
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("artifact does not match %s schema: %w", kind, err)
	}
	return nil
}

// Read loads the artifact at path, validates it as kind and decodes its model into out.
// out may be nil for kinds whose model carries no data.
func Read(path string, kind Kind, out any) (Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Envelope{}, fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := Validate(kind, data); err != nil {
		return Envelope{}, fmt.Errorf("%s: %w", path, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if out != nil && len(env.Model) > 0 {
		if err := json.Unmarshal(env.Model, out); err != nil {
			return Envelope{}, fmt.Errorf("decode %s model in %s: %w", kind, path, err)
		}
	}
	return env, nil
}

// Write wraps model in a fresh envelope, validates it and writes it atomically to path.
func Write(path string, kind Kind, model any) (Envelope, error) {
	raw, err := json.Marshal(model)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s model: %w", kind, err)
	}
	env := Envelope{Kind: kind, ID: uuid.NewString(), CreatedAt: time.Now().UTC(), Model: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode envelope: %w", err)
	}
	if err := Validate(kind, data); err != nil {
		return Envelope{}, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Envelope{}, fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return Envelope{}, fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return Envelope{}, fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Envelope{}, fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Envelope{}, fmt.Errorf("install artifact %s: %w", path, err)
	}
	return env, nil
}
