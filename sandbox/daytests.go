package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var dayScriptPattern = regexp.MustCompile(`^day_(\d+)\.\w+$`)

// DayScripts lists the day_<N>.<ext> files in dir ordered by day number.
func (c *Coordinator) DayScripts(dir string) ([]string, error) {
	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	type dayScript struct {
		day  int
		name string
	}
	var scripts []dayScript
	for _, entry := range entries {
		if !entry.Mode().IsRegular() {
			continue
		}
		m := dayScriptPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		day, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		scripts = append(scripts, dayScript{day: day, name: entry.Name()})
	}

	sort.Slice(scripts, func(i, j int) bool {
		if scripts[i].day != scripts[j].day {
			return scripts[i].day < scripts[j].day
		}
		return scripts[i].name < scripts[j].name
	})

	paths := make([]string, 0, len(scripts))
	for _, s := range scripts {
		paths = append(paths, filepath.Join(dir, s.name))
	}
	return paths, nil
}

// DayTests runs the runtime's test command over every day script in dir,
// followed by extra arguments, and returns its exit code.
func (c *Coordinator) DayTests(ctx context.Context, dir string, extra []string) (int, error) {
	scripts, err := c.DayScripts(dir)
	if err != nil {
		return 0, err
	}

	args := []string{c.runtime}
	args = append(args, c.testArgs...)
	args = append(args, scripts...)
	args = append(args, extra...)

	c.logger.Info("Running day tests", zap.Strings("scripts", scripts))
	code, err := c.cmdRunner.RunCommand(ctx, args)
	if err != nil {
		return 0, fmt.Errorf("failed to run %s: %w", c.runtime, err)
	}
	return code, nil
}
