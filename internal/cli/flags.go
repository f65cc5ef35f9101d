package cli

import (
	"github.com/spf13/pflag"

	"github.com/ppasupat/web-entity-extractor-ACL2014/internal/config"
)

// Flag defaults come from config.Default so that flags, the config file
// and the environment agree.

func addDataFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("data-dir", d.DataDir, "Storage folder with datasets/ and the frozen page cache")
	fs.StringSlice("dataset", nil, "Dataset family.name (a@b trains on a and tests on b, a+b concatenates); repeatable")
	fs.Int("threads", d.Threads, "Extraction workers (0 = GOMAXPROCS)")
	fs.Float64("train-frac", d.TrainFrac, "Leading fraction of each dataset used for training")
	fs.Float64("test-frac", d.TestFrac, "Trailing fraction of each dataset used for testing")
	fs.Bool("zero-one-loss", d.ZeroOneLoss, "Reward 1 only for exactly matching lists")
	fs.Bool("fuzzy", d.Fuzzy, "Match entities by edit distance instead of substring")
	fs.Bool("shuffle", d.Shuffle, "Shuffle each dataset before splitting")
	fs.Bool("use-seed", d.UseSeed, "Evaluate only lists that contain the second gold entity")
}

func addModelFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("learner", d.Learner, "Learner: maxent, beam or baseline")
	fs.Int("iterations", d.Iterations, "Training iterations")
	fs.Float64("beta", d.Beta, "L2 regularization strength")
	fs.Float64("lambda", d.Lambda, "L1 regularization strength")
	fs.Bool("dual-averaging", d.DualAveraging, "Use dual averaging updates")
	fs.Int("beam-size", d.BeamSize, "Candidates expanded per example by the beam learner")
	fs.String("word-vectors", d.WordVectors, "Word vector file enabling the query/entity bilinear term")
	fs.Bool("advanced", d.Advanced, "Also enumerate wildcard and end-cut paths")
}

func addFetchFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("cache-dir", d.CacheDir, "Page cache directory for fetched URLs (empty disables it)")
	fs.Bool("render", d.Render, "Render pages with headless Chrome")
	fs.Bool("offline", d.Offline, "Never fetch pages from the web")
	fs.Bool("freeze", d.Freeze, "Also store fetched pages in the frozen cache")
	fs.Duration("delay", d.Delay, "Delay between web requests")
	fs.Duration("timeout", d.Timeout, "Timeout of one web request")
	fs.String("user-agent", d.UserAgent, "User-Agent header")
}
