// Command foldmirror is a one-shot CLI entrypoint over the sync engine
// (spec.md §6 "CLI surface"): a single source/target pair is scanned,
// diffed, and optionally copied, with no persisted task catalog and no
// runtime coordinator involved.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/foldmirror/foldmirror/pkg/cmd"
	"github.com/foldmirror/foldmirror/pkg/logging"
	"github.com/foldmirror/foldmirror/pkg/mirror/core"
	"github.com/foldmirror/foldmirror/pkg/mirror/copy"
	"github.com/foldmirror/foldmirror/pkg/mirror/diff"
	"github.com/foldmirror/foldmirror/pkg/mirror/format"
	"github.com/foldmirror/foldmirror/pkg/mirror/pathresolve"
	"github.com/foldmirror/foldmirror/pkg/mirror/volume"
)

var rootConfiguration struct {
	source      string
	target      string
	dryRun      bool
	noChecksum  bool
	verify      bool
	listVolumes bool
}

// placeholderEnumerator satisfies volume.Enumerator for the CLI build.
// Platform-specific mount table access (IOKit, diskutil, /proc/mounts,
// DeviceIoControl) is out of scope for this specification (see
// pkg/mirror/volume); --list-volumes reports that no enumerator is
// wired rather than silently claiming an empty mount table.
type placeholderEnumerator struct{}

func (placeholderEnumerator) ListVolumes(ctx context.Context) ([]volume.Info, error) {
	return nil, errors.New("this build has no platform volume enumerator wired in")
}

func (placeholderEnumerator) Unmount(ctx context.Context, mountPoint string) error {
	return errors.New("this build has no platform volume enumerator wired in")
}

func rootMain(command *cobra.Command, arguments []string) error {
	if rootConfiguration.listVolumes {
		return runListVolumes(command.Context())
	}

	if rootConfiguration.source == "" || rootConfiguration.target == "" {
		return errors.New("--source and --target are both required")
	}

	return runSync(command.Context())
}

func runListVolumes(ctx context.Context) error {
	var enumerator volume.Enumerator = placeholderEnumerator{}
	volumes, err := enumerator.ListVolumes(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to list volumes")
	}
	if len(volumes) == 0 {
		fmt.Println("No volumes available.")
		return nil
	}
	for _, v := range volumes {
		fmt.Printf("%-30s %s\n", v.Name, v.MountPoint)
	}
	return nil
}

func runSync(ctx context.Context) error {
	var enumerator volume.Enumerator = placeholderEnumerator{}

	source, err := pathresolve.Resolve(ctx, enumerator, rootConfiguration.source)
	if err != nil {
		return errors.Wrap(err, "unable to resolve --source")
	}
	target, err := pathresolve.Resolve(ctx, enumerator, rootConfiguration.target)
	if err != nil {
		return errors.Wrap(err, "unable to resolve --target")
	}

	outcome, err := diff.Compute(ctx, source, target, diff.Options{
		ChecksumMode: !rootConfiguration.noChecksum,
		Logger:       logging.RootLogger.Sublogger("foldmirror"),
	})
	if err != nil {
		return errors.Wrap(err, "unable to compute difference")
	}

	if len(outcome.Conflicts) > 0 {
		cmd.Warning(fmt.Sprintf("%d file(s) have a newer target copy and were skipped; run through the runtime coordinator's conflict review store to resolve them", len(outcome.Conflicts)))
	}

	if rootConfiguration.dryRun {
		printDryRun(outcome.Result)
		return nil
	}

	result, err := copy.Run(ctx, source, target, outcome.Diffs, copy.Options{
		PreservePermissions: true,
		PreserveTimes:       true,
		VerifyAfterCopy:     rootConfiguration.verify,
	}, copy.NoopSink)
	if err != nil {
		return errors.Wrap(err, "sync run failed")
	}

	fmt.Printf("Copied %d file(s), %s.\n", result.FilesCopied, format.Bytes(result.BytesCopied, core.DataUnitBinary))
	for _, syncErr := range result.Errors {
		cmd.Error(errors.Errorf("%s: %s", syncErr.Path, syncErr.Message))
	}
	if len(result.Errors) > 0 {
		return errors.Errorf("%d file(s) failed to copy", len(result.Errors))
	}
	return nil
}

func printDryRun(result core.DryRunResult) {
	fmt.Printf("Total files:     %s\n", format.Comma(int64(result.TotalFiles)))
	fmt.Printf("Files to copy:   %s\n", format.Comma(int64(result.FilesToCopy)))
	fmt.Printf("Files modified:  %s\n", format.Comma(int64(result.FilesModified)))
	fmt.Printf("Bytes to copy:   %s\n", format.Bytes(result.BytesToCopy, core.DataUnitBinary))
}

var rootCommand = &cobra.Command{
	Use:           "foldmirror",
	Short:         "foldmirror mirrors one directory tree onto another",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          rootMain,
}

func init() {
	flags := rootCommand.Flags()
	flags.StringVar(&rootConfiguration.source, "source", "", "Source directory (plain path or [DISK_UUID:...]/[VOLUME_UUID:...] token)")
	flags.StringVar(&rootConfiguration.target, "target", "", "Target directory (plain path or [DISK_UUID:...]/[VOLUME_UUID:...] token)")
	flags.BoolVarP(&rootConfiguration.dryRun, "dry-run", "n", false, "Compute and print the difference without copying")
	flags.BoolVarP(&rootConfiguration.noChecksum, "no-checksum", "c", false, "Disable the xxHash64 checksum fallback comparison")
	flags.BoolVar(&rootConfiguration.verify, "verify", false, "Verify each copied file's checksum against its source afterward")
	flags.BoolVar(&rootConfiguration.listVolumes, "list-volumes", false, "List mounted volumes known to the platform enumerator and exit")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		cmd.Fatal(err)
	}
	os.Exit(0)
}
