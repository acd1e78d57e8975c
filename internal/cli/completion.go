package cli

import (
	"flag"
	"io"

	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/simaogato/capitalflow-backend/internal/config"
	"github.com/simaogato/capitalflow-backend/internal/domain"
)

// Completion describes capitalctl for shell completion. Global flags come
// from global; subcommand flags are read from each command's SetFlags.
func Completion(global *flag.FlagSet, env *Env) *complete.Command {
	root := &complete.Command{
		Sub:   map[string]*complete.Command{},
		Flags: flagPredictors(global),
	}
	for _, cmds := range Commands(env) {
		for _, cmd := range cmds {
			fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			cmd.SetFlags(fs)
			root.Sub[cmd.Name()] = &complete.Command{Flags: flagPredictors(fs)}
		}
	}
	for _, name := range []string{"help", "flags", "commands"} {
		root.Sub[name] = &complete.Command{}
	}
	return root
}

func flagPredictors(fs *flag.FlagSet) map[string]complete.Predictor {
	out := map[string]complete.Predictor{}
	fs.VisitAll(func(f *flag.Flag) {
		out[f.Name] = predictorFor(f.Name)
	})
	return out
}

func predictorFor(name string) complete.Predictor {
	switch name {
	case "driver":
		return predict.Set{config.DriverSQLite, config.DriverPostgres, config.DriverMemory}
	case "p":
		return predict.Set{
			string(domain.PeriodMonthly),
			string(domain.PeriodQuarterly),
			string(domain.PeriodYearly),
			string(domain.Period60Day),
			string(domain.Period90Day),
			string(domain.PeriodCustom),
		}
	case "db":
		return predict.Files("*.db")
	default:
		return predict.Something
	}
}
