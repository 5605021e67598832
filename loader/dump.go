package loader

import (
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-launcher/source"
)

// DumpDirName is the base name of the directory transformed units are
// written to when dumping is enabled.
const DumpDirName = "LOADER_TEMP"

const maxDumpDirs = 10

// PrepareDumpDir picks the first of LOADER_TEMP, LOADER_TEMP1 ...
// LOADER_TEMP10 under home that does not exist yet and creates it. It
// returns "" when every candidate is taken, in which case dumping stays off.
func PrepareDumpDir(home string) (string, error) {
	for i := 0; i <= maxDumpDirs; i++ {
		name := DumpDirName
		if i > 0 {
			name += strconv.Itoa(i)
		}
		dir := filepath.Join(home, name)
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		Logger().Info("saving transformed modules", zap.String("dir", dir))
		return dir, nil
	}
	Logger().Info("no free dump directory, not saving transformed modules",
		zap.String("home", home))
	return "", nil
}

func (l *Loader) dump(final string, code []byte) {
	out := filepath.Join(l.dumpDir, filepath.FromSlash(source.Path(final)))
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		Logger().Warn("could not save transformed module", zap.String("module", final), zap.Error(err))
		return
	}
	if err := os.WriteFile(out, code, 0o644); err != nil {
		Logger().Warn("could not save transformed module", zap.String("module", final), zap.Error(err))
		return
	}
	Logger().Debug("saved transformed module", zap.String("module", final), zap.String("path", out))
}
