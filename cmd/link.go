package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/snaplink/snaplink/pkg/config"
	"github.com/snaplink/snaplink/pkg/expression"
	"github.com/snaplink/snaplink/pkg/inodemap"
	"github.com/snaplink/snaplink/pkg/linker"
	"github.com/snaplink/snaplink/pkg/logger"
	"github.com/snaplink/snaplink/pkg/notification"
	"github.com/snaplink/snaplink/pkg/paths"
)

func LinkCommand() *cobra.Command {
	var (
		flagIgnoreTime  bool
		flagIgnoreMode  bool
		flagIgnoreOwner bool
	)

	command := &cobra.Command{
		Use:   "link KEEP CANDIDATE...",
		Short: "Hard-link duplicate files in candidate snapshots to the keep snapshot",
		Long: `Scans the keep snapshot and one or more candidate snapshots, then replaces
every candidate file that is byte-identical to a keep-set file with a hard
link to it. Keep-set paths are never modified.`,

		Args: cobra.MinimumNArgs(2),
	}

	command.Flags().BoolVarP(&flagIgnoreTime, "time", "t", false, "Do not require modification time to match")
	command.Flags().BoolVarP(&flagIgnoreMode, "mode", "m", false, "Do not require file mode to match")
	command.Flags().BoolVarP(&flagIgnoreOwner, "owner", "o", false, "Do not require file owner to match")

	command.Run = func(cmd *cobra.Command, args []string) {
		start := time.Now()

		// init core
		if !initialized {
			initCore(true)
			initialized = true
		}

		// set log
		log := logger.GetLogger("link")

		noti := notification.NewDiscordSender(log, config.Config.Notifications)

		keepRoot := args[0]
		candidateRoots := args[1:]

		for _, root := range args {
			info, err := os.Stat(root)
			if err != nil {
				log.WithError(err).Fatalf("Failed accessing directory: %q", root)
			} else if !info.IsDir() {
				log.Fatalf("Not a directory: %q", root)
			}
		}

		opts := inodemap.Options{
			MatchTime:  !flagIgnoreTime && !config.Config.Match.IgnoreTime,
			MatchMode:  !flagIgnoreMode && !config.Config.Match.IgnoreMode,
			MatchOwner: !flagIgnoreOwner && !config.Config.Match.IgnoreOwner,
		}
		log.Debugf("Comparison key options: %+v", opts)

		ignores, err := paths.CompileIgnores(config.Config.Walk.IgnorePatterns)
		if err != nil {
			log.WithError(err).Fatal("Failed compiling ignore patterns")
		}

		includes, err := expression.Compile(config.Config.Filters.Include)
		if err != nil {
			log.WithError(err).Fatal("Failed compiling include filters")
		}

		excludes, err := expression.Compile(config.Config.Filters.Exclude)
		if err != nil {
			log.WithError(err).Fatal("Failed compiling exclude filters")
		}

		warn := func(path string, err error) {
			log.WithError(err).Warnf("Failed walking %q, skipping", path)
		}

		// keep-set files are link targets and never filtered
		keepPaths := paths.Collect([]string{keepRoot}, ignores, nil, warn)
		log.Infof("Found %d file(s) in keep snapshot %q", keepPaths.Size(), keepRoot)

		// candidates honor the configured filter expressions
		acceptFn := func(path string, info fs.FileInfo) bool {
			return candidateAccepted(path, info, includes, excludes, log)
		}

		candidatePaths := paths.Collect(candidateRoots, ignores, acceptFn, warn)
		log.Infof("Found %d file(s) in %d candidate snapshot(s)", candidatePaths.Size(), len(candidateRoots))

		keepMap := inodemap.New(opts)
		keepMap.AddSet(keepPaths)
		log.Infof("Keep snapshot holds %d unique inode(s)", keepMap.Length())

		candidateMap := inodemap.New(opts)
		candidateMap.AddSet(candidatePaths)
		log.Infof("Candidate snapshots hold %d unique inode(s)", candidateMap.Length())

		var fields []notification.Field

		engine := linker.New(FlagDryRun)
		engine.OnMerge = func(target *inodemap.InodeRecord, source *inodemap.InodeRecord) {
			fields = append(fields, noti.BuildField(notification.ActionLink, notification.BuildOptions{
				Source:         source.RepresentativePath(),
				Target:         target.RepresentativePath(),
				Paths:          len(source.Paths),
				ReclaimedBytes: source.AllocatedBytes(),
			}))
		}

		engine.OnSkip = func(target *inodemap.InodeRecord, source *inodemap.InodeRecord, path string) {
			fields = append(fields, noti.BuildField(notification.ActionSkip, notification.BuildOptions{
				Source: path,
				Target: target.RepresentativePath(),
			}))
		}

		if FlagDryRun {
			log.Warn("Dry-run enabled, no filesystem changes will be made...")
		}

		stats, runErr := engine.Deduplicate(keepMap, candidateMap)

		var relinkErr *linker.RelinkError
		if runErr != nil {
			if errors.As(runErr, &relinkErr) {
				log.WithError(relinkErr.Err).Errorf(
					"Aborting: %q was removed but could not be relinked to %q; its content is identical to %q",
					relinkErr.Path, relinkErr.Target, relinkErr.Target)
			} else {
				log.WithError(runErr).Error("Aborting")
			}
		}

		mode := "normal"
		if FlagDryRun {
			mode = "dry-run"
		}

		log.Info("-----")
		log.WithField("reclaimed_space", humanize.IBytes(stats.ReclaimedBytes)).
			Infof("Finished (%s run): %d comparison(s), %d inode(s) merged, %d path(s) skipped, %s reclaimed",
				mode, stats.Comparisons, stats.Merges, stats.SkippedPaths, humanize.IBytes(stats.ReclaimedBytes))

		if noti.CanSend() {
			sendErr := noti.Send(
				"Relink",
				fmt.Sprintf("Merged **%d** inode(s) | Total reclaimed **%s**",
					stats.Merges, humanize.IBytes(stats.ReclaimedBytes)),
				time.Since(start),
				fields,
				FlagDryRun,
			)
			if sendErr != nil {
				log.WithError(sendErr).Error("Failed sending notification")
			}
		} else {
			log.Debug("Notifications disabled, skipping...")
		}

		if runErr != nil {
			os.Exit(1)
		}
	}

	return command
}

// candidateAccepted applies the configured include/exclude expressions to a
// discovered candidate file. Exclusions win over inclusions.
func candidateAccepted(path string, info fs.FileInfo, includes []*expression.CompiledExpression,
	excludes []*expression.CompiledExpression, log *logrus.Entry) bool {

	f := expression.NewFile(path, info)

	if len(excludes) > 0 {
		match, reason, err := expression.CheckFileSingleMatchWithReason(f, excludes)
		if err != nil {
			log.WithError(err).Warnf("Failed evaluating exclude filters for %q", path)
			return false
		}
		if match {
			log.Tracef("Excluding %q (matched: %q)", path, reason)
			return false
		}
	}

	if len(includes) > 0 {
		match, err := expression.CheckFileSingleMatch(f, includes)
		if err != nil {
			log.WithError(err).Warnf("Failed evaluating include filters for %q", path)
			return false
		}
		if !match {
			log.Tracef("Skipping %q (no include filter matched)", path)
			return false
		}
	}

	return true
}
