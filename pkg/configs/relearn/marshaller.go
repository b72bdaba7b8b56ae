package relearn

import (
	"os"

	"gopkg.in/yaml.v3"
)

// load the retraining service config from a file.
func LoadServerConfig(filepath string) (*ServerConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (out *ServerConfig, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = &ConfigError{Message: stringify(r)}
		}
	}()

	var _out *ServerConfigMarshall
	if err := yaml.Unmarshal(conf, &_out); err != nil {
		return nil, err
	}
	if _out == nil {
		return nil, &ConfigError{Message: "config is empty"}
	}
	return TrySeal(_out), nil
}

type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "misconfiguration: " + e.Message
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "unknown misconfiguration"
}
