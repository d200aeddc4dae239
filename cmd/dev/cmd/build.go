package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const buildImage = "gophertribe/gobuild:1.25-bookworm"

// boards maps the supported single board computers to their GOOS/GOARCH.
var boards = map[string]target{
	"nanopi-neo": {os: "linux", arch: "arm"},
	"rpi":        {os: "linux", arch: "arm64"},
}

type target struct {
	os, arch string
}

func (t target) native() bool {
	return t.os == runtime.GOOS && t.arch == runtime.GOARCH
}

func (t target) binary() string {
	return fmt.Sprintf("dist/glcd-%s-%s", t.os, t.arch)
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the glcd cli",
		Long: `Build the glcd cli into dist/. Native builds run go build directly;
other targets are built inside the gobuild docker image because the hid
transport needs cgo.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			version, _ := flags.GetString("version")
			noCache, _ := flags.GetBool("no-cache")
			t := target{}
			t.os, _ = flags.GetString("os")
			t.arch, _ = flags.GetString("arch")
			if name, _ := flags.GetString("board"); name != "" {
				b, ok := boards[name]
				if !ok {
					return fmt.Errorf("unknown board %q", name)
				}
				t = b
			}
			// set inside the build image when cross compiling
			cross := target{}
			cross.os, _ = flags.GetString("cross-os")
			cross.arch, _ = flags.GetString("cross-arch")

			if t.native() {
				if cross.os != "" && cross.arch != "" {
					t = cross
				}
				return build.GoBuild(t.binary(), "./cmd/glcd", build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "main",
					EnableCgo:     true,
					Arch:          t.arch,
					OS:            t.os,
				})
			}
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", t.os, t.arch),
				[]string{"build", "--version", version, "--cross-os", t.os, "--cross-arch", t.arch},
				build.DockerBuildOpts{
					NoCache: noCache,
					Image:   buildImage,
				})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building in docker")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("board", "", "build for a board (nanopi-neo, rpi)")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")
	return cmd
}
