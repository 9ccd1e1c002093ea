package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const (
	binaryPath  = "dist/protractor"
	mainPackage = "./cmd/protractor"
	buildImage  = "gophertribe/gobuild:1.25-bookworm"
)

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the protractor cli",
		Long: `Build the protractor cli into dist/.

Native builds run go build directly. Builds for another platform (e.g. a
NanoPi with --os linux --arch arm64) run inside a container since the usb
bridge support needs cgo.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tgt, err := buildTarget(cmd)
			if err != nil {
				return err
			}
			version := cmd.Flag("version").Value.String()
			if tgt.native {
				return build.GoBuild(binaryPath, mainPackage, build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "main",
					EnableCgo:     true,
					Arch:          tgt.arch,
					OS:            tgt.os,
				})
			}
			noCache, err := cmd.Flags().GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			// the container runs this tool again as a native build for the target
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", tgt.os, tgt.arch),
				[]string{"build", "--version", version, "--cross-os", tgt.os, "--cross-arch", tgt.arch},
				build.DockerBuildOpts{
					NoCache: noCache,
					Image:   buildImage,
				})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().String("cross-os", "", "os to cross-compile for")
	cmd.Flags().String("cross-arch", "", "arch to cross-compile for")
	return cmd
}

type target struct {
	os     string
	arch   string
	native bool
}

// buildTarget resolves the platform to build for. Inside the build container
// --cross-os and --cross-arch carry the platform the host asked for.
func buildTarget(cmd *cobra.Command) (target, error) {
	os, err := cmd.Flags().GetString("os")
	if err != nil {
		return target{}, fmt.Errorf("could not get os flag: %w", err)
	}
	arch, err := cmd.Flags().GetString("arch")
	if err != nil {
		return target{}, fmt.Errorf("could not get arch flag: %w", err)
	}
	crossOs, _ := cmd.Flags().GetString("cross-os")
	crossArch, _ := cmd.Flags().GetString("cross-arch")
	t := target{os: os, arch: arch, native: os == runtime.GOOS && arch == runtime.GOARCH}
	if t.native && crossOs != "" && crossArch != "" {
		t.os, t.arch = crossOs, crossArch
	}
	return t, nil
}
