package envconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

var (
	// Set via CTCLM_DEBUG in the environment
	Debug bool
	// Set via CTCLM_MODELS in the environment
	ModelDir string
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"CTCLM_DEBUG":  {"CTCLM_DEBUG", Debug, "Show additional debug information (e.g. CTCLM_DEBUG=1)"},
		"CTCLM_MODELS": {"CTCLM_MODELS", ModelDir, "The path to the scorer package directory (default \"models\")"},
	}
}

// Values returns the current setting of every variable, for logging.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}

// UsageTemplate returns an "Environment Variables" section listing the named
// variables, to append to a cobra usage template.
func UsageTemplate(names ...string) string {
	vars := AsMap()
	if len(names) == 0 {
		for k := range vars {
			names = append(names, k)
		}
		slices.Sort(names)
	}

	var sb strings.Builder
	sb.WriteString("\nEnvironment Variables:\n")
	for _, name := range names {
		if v, ok := vars[name]; ok {
			fmt.Fprintf(&sb, "      %-18s%s\n", v.Name, v.Description)
		}
	}
	return sb.String()
}

// Clean quotes and spaces from the value
func clean(key string) string {
	return strings.Trim(os.Getenv(key), "\"' ")
}

func init() {
	LoadConfig()
}

func LoadConfig() {
	Debug = false
	if debug := clean("CTCLM_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	ModelDir = "models"
	if dir := clean("CTCLM_MODELS"); dir != "" {
		ModelDir = filepath.Clean(dir)
	}
}
