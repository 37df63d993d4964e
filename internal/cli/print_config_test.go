package cli_test

import (
	"path/filepath"
	"testing"

	"github.com/calvinalkan/lurch/internal/cli"
)

func Test_Print_Config_Shows_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "effective_cwd="+c.Dir)
	cli.AssertContains(t, stdout, "capacity=1024")
	cli.AssertContains(t, stdout, "ordering=insertion")
	cli.AssertContains(t, stdout, "limit=0")
	cli.AssertContains(t, stdout, "log_level=notice")
	cli.AssertContains(t, stdout, "(defaults only)")
	cli.AssertNotContains(t, stdout, "event_log=")
}

func Test_Print_Config_Reads_Project_File_With_Comments_When_Present(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := c.WriteFile(".lurchy.json", `{
		// bounded LRU
		"ordering": "access",
		"limit": 100,
		"event_log": "events.log",
	}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "ordering=access")
	cli.AssertContains(t, stdout, "limit=100")
	cli.AssertContains(t, stdout, "event_log="+filepath.Join(c.Dir, "events.log"))
	cli.AssertContains(t, stdout, "event_log_max_size_mb=10")
	cli.AssertContains(t, stdout, "project_config="+path)
}

func Test_Print_Config_Reads_TOML_When_Explicit_Config_Given(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := c.WriteFile("conf/lurchy.toml", "ordering = \"modified\"\ncapacity = 4096\n")

	stdout := c.MustRun("-c", "conf/lurchy.toml", "print-config")

	cli.AssertContains(t, stdout, "ordering=modified")
	cli.AssertContains(t, stdout, "capacity=4096")
	cli.AssertContains(t, stdout, "project_config="+path)
}

func Test_Print_Config_Prefers_Flags_When_File_Also_Sets_Value(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".lurchy.json", `{"ordering": "access", "capacity": 10}`)

	stdout := c.MustRun("--ordering", "insertion", "--capacity", "20", "print-config")

	cli.AssertContains(t, stdout, "ordering=insertion")
	cli.AssertContains(t, stdout, "capacity=20")
}

func Test_Print_Config_Shows_Global_Source_When_Global_File_Exists(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	path := c.WriteFile(".xdg/lurchy/config.json", `{"log_level": "warning"}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "log_level=warning")
	cli.AssertContains(t, stdout, "global_config="+path)
}

func Test_Print_Config_Fails_When_Explicit_Config_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("-c", "missing.json", "print-config")

	cli.AssertContains(t, stderr, "config file not found")
}
