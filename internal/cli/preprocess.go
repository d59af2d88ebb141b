package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/joho/godotenv"
)

type TemplateContext struct {
	ENV map[string]string
}

var missingKeyRegex = regexp.MustCompile(`map has no entry for key "(.*?)"`)

// PreprocessConfig replaces {{ .ENV.VAR }} placeholders with values from the
// environment or from envFile. Variables set in the environment take precedence.
// A missing envFile is not an error.
func PreprocessConfig(inputRaw []byte, envFile string) ([]byte, error) {
	if !bytes.Contains(inputRaw, []byte("{{")) {
		return inputRaw, nil
	}

	envMap := map[string]string{}
	if envFile != "" {
		fromFile, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("unable to read %s: %w", envFile, err)
		}
		for k, v := range fromFile {
			envMap[k] = v
		}
	}
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			envMap[k] = v
		}
	}

	tmpl, err := template.New("config").Option("missingkey=error").Parse(string(inputRaw))
	if err != nil {
		return nil, err
	}

	var output bytes.Buffer
	if err := tmpl.Execute(&output, TemplateContext{ENV: envMap}); err != nil {
		if matches := missingKeyRegex.FindStringSubmatch(err.Error()); len(matches) == 2 {
			return nil, fmt.Errorf("missing environment variable: %s (set it in your shell or .env file)", matches[1])
		}
		return nil, fmt.Errorf("template error: %w", err)
	}

	return output.Bytes(), nil
}
