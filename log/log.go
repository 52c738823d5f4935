package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"arcade/config"
)

// Level type of loglevel
type Level int

const (
	// ALL output all logs
	ALL Level = iota
	// DEBUG output debug/info/error logs
	DEBUG
	// INFO output info/error logs
	INFO
	// ERROR output error logs
	ERROR
	// NOLOG output no logs
	NOLOG
)

var (
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newDefaultLogger()
	sugar  = logger.Sugar()
)

func newDefaultLogger() *zap.Logger {
	enc := zapcore.NewConsoleEncoder(encoderConfig())
	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level)
	return zap.New(core, zap.AddCaller())
}

func encoderConfig() zapcore.EncoderConfig {
	encconf := zap.NewProductionEncoderConfig()
	encconf.EncodeTime = zapcore.ISO8601TimeEncoder
	encconf.EncodeLevel = zapcore.CapitalLevelEncoder
	return encconf
}

// InitLogger : confに従ってloggerを作り直す.
// 返り値をmain終了時に呼ぶことでバッファをflushする.
func InitLogger(conf *config.LogConf) func() {
	cores := []zapcore.Core{}

	var stdoutEnc zapcore.Encoder
	if conf.LogStdoutConsole {
		stdoutEnc = zapcore.NewConsoleEncoder(encoderConfig())
	} else {
		stdoutEnc = zapcore.NewJSONEncoder(encoderConfig())
	}
	stdoutLevel := (Level(conf.LogStdoutLevel)).zaplevel()
	cores = append(cores, zapcore.NewCore(stdoutEnc, zapcore.AddSync(os.Stdout), stdoutLevel))

	if conf.LogPath != "" {
		lj := &lumberjack.Logger{
			Filename:   conf.LogPath,
			MaxSize:    conf.LogMaxSize,
			MaxBackups: conf.LogMaxBackups,
			MaxAge:     conf.LogMaxAge,
			Compress:   conf.LogCompress,
		}
		enc := zapcore.NewJSONEncoder(encoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(lj), level))
	}

	logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	sugar = logger.Sugar()

	return func() {
		_ = logger.Sync()
	}
}

func (l Level) zaplevel() zapcore.LevelEnabler {
	switch {
	case l <= DEBUG:
		return zapcore.DebugLevel
	case l == INFO:
		return zapcore.InfoLevel
	case l == ERROR:
		return zapcore.ErrorLevel
	}
	return zapcore.FatalLevel
}

// SetLevel sets loglevel of the file and default stdout core.
func SetLevel(l Level) {
	switch {
	case l <= DEBUG:
		level.SetLevel(zapcore.DebugLevel)
	case l == INFO:
		level.SetLevel(zapcore.InfoLevel)
	default:
		level.SetLevel(zapcore.ErrorLevel)
	}
}

// Get returns the SugaredLogger to be scoped by callers (eg. per room).
func Get() *zap.SugaredLogger {
	return sugar
}

// Debugf outputs log for debug
func Debugf(format string, v ...interface{}) {
	sugar.WithOptions(zap.AddCallerSkip(1)).Debugf(format, v...)
}

// Infof outputs log for information
func Infof(format string, v ...interface{}) {
	sugar.WithOptions(zap.AddCallerSkip(1)).Infof(format, v...)
}

// Errorf outputs log for error
func Errorf(format string, v ...interface{}) {
	sugar.WithOptions(zap.AddCallerSkip(1)).Errorf(format, v...)
}

// String implements Stringer interface
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case ERROR:
		return "ERROR"
	}
	if l <= ALL {
		return "ALL"
	}
	return "NOLOG"
}
