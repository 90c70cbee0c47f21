package env

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/reqspec/packages/logger"
	"go.uber.org/zap"
)

// LoadDotEnv reads KEY=value pairs from a .env file. Values may be wrapped in
// single or double quotes and an "export " prefix is accepted. Lines that
// cannot be parsed are skipped with a warning naming the line. The process
// environment is left alone.
func LoadDotEnv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer f.Close()

	vars, err := parseDotEnv(f, path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return vars, nil
}

func parseDotEnv(r io.Reader, name string) (map[string]string, error) {
	vars := make(map[string]string)
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, problem := parseDotEnvLine(line)
		if problem != "" {
			logger.Warn("skipping malformed env line",
				zap.String("file", name),
				zap.Int("line", lineNo),
				zap.String("reason", problem))
			continue
		}
		vars[key] = value
	}
	return vars, sc.Err()
}

// parseDotEnvLine splits one non-blank, non-comment line. problem is set when
// the line has to be skipped.
func parseDotEnvLine(line string) (key, value, problem string) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", "missing '='"
	}
	key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
	if key == "" {
		return "", "", "empty key"
	}
	if strings.ContainsAny(key, " \t") {
		return "", "", "key contains whitespace"
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return key, "", ""
	}
	switch q := value[0]; q {
	case '"', '\'':
		if len(value) < 2 || value[len(value)-1] != q {
			return "", "", "unterminated quote"
		}
		value = value[1 : len(value)-1]
	}
	return key, value, ""
}
