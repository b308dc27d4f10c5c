package main

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/xyzl/logging"
)

const (
	// Flags.
	replayFlagBag        = "bag"
	replayFlagDepthTopic = "depth-topic"
	replayFlagLabelTopic = "label-topic"
	replayFlagInfoTopic  = "info-topic"
	replayFlagOut        = "out"
	replayFlagConfig     = "config"
	replayFlagRate       = "rate"
	replayFlagFormat     = "format"

	debugFlag    = "debug"
	logLevelFlag = "log-level"
	logFileFlag  = "log-file"
)

// NewApp returns the xyzl command with Writer set to out and ErrWriter set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "xyzl",
		Usage:           "build labelled point clouds from depth and label images",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging, overriding --log-level",
			},
			&cli.StringFlag{
				Name:  logLevelFlag,
				Value: "info",
				Usage: "minimum `LEVEL` to log: debug, info, warn or error",
			},
			&cli.PathFlag{
				Name:  logFileFlag,
				Usage: "also write logs to `FILE`, rotated as it grows",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "replay",
				Usage:     "replay a rosbag through the node and write one pcd file per point cloud",
				UsageText: fmt.Sprintf("xyzl replay --%s <bag> --%s <dir> [other options]", replayFlagBag, replayFlagOut),
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     replayFlagBag,
						Required: true,
						Usage:    "rosbag `FILE` to read",
					},
					&cli.StringFlag{
						Name:  replayFlagDepthTopic,
						Value: "/camera/depth_registered/image_rect",
						Usage: "bag topic holding depth images",
					},
					&cli.StringFlag{
						Name:  replayFlagLabelTopic,
						Value: "/camera/label/label",
						Usage: "bag topic holding label images",
					},
					&cli.StringFlag{
						Name:  replayFlagInfoTopic,
						Value: "/camera/label/camera_info",
						Usage: "bag topic holding the label camera calibration",
					},
					&cli.PathFlag{
						Name:     replayFlagOut,
						Required: true,
						Usage:    "output `DIR` for pcd files",
					},
					&cli.PathFlag{
						Name:  replayFlagConfig,
						Usage: "node configuration `FILE` (json)",
					},
					&cli.Float64Flag{
						Name:  replayFlagRate,
						Value: 10,
						Usage: "maximum messages per second to replay, 0 for as fast as the node keeps up",
					},
					&cli.StringFlag{
						Name:  replayFlagFormat,
						Value: "binary",
						Usage: "pcd data format, binary or ascii",
					},
				},
				Action: ReplayAction,
			},
		},
	}
}

// newLogger logs to the app's error writer and, when requested, to a rotated file. It also becomes
// the global logger. The returned function closes the file.
func newLogger(c *cli.Context) (logging.Logger, func() error, error) {
	level, err := logging.LevelFromString(c.String(logLevelFlag))
	if err != nil {
		return nil, nil, err
	}
	if c.Bool(debugFlag) {
		level = logging.DEBUG
	}

	logger := logging.NewBlankLogger("xyzl")
	logger.SetLevel(level)
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	closeLog := func() error { return nil }
	if path := c.Path(logFileFlag); path != "" {
		file := logging.NewFileAppender(path, 0, 0)
		logger.AddAppender(file)
		closeLog = file.Close
	}
	logging.ReplaceGlobal(logger)
	return logger, closeLog, nil
}

func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}
