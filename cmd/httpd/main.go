// Command httpd starts a reactor-httpd server from command-line flags,
// mirroring the original WebServer constructor's argument list (port,
// trigger mode, timeout, linger, SQL pool, thread count, logging) one flag
// at a time.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	httpd "github.com/behrlich/reactor-httpd"
)

func main() {
	opts := httpd.DefaultOptions()

	var (
		port        = flag.Int("port", opts.Port, "listen port (1024-65535)")
		triggerMode = flag.Int("trigger_mode", opts.TriggerMode, "0=LT/LT 1=LT/ET 2=ET/LT 3=ET/ET")
		timeoutMS   = flag.Int("timeout_ms", opts.TimeoutMS, "idle connection timeout in ms (0 disables)")
		openLinger  = flag.Bool("open_linger", opts.OpenLinger, "SO_LINGER on the listening socket")
		srcDir      = flag.String("src_dir", opts.SrcDir, "directory static files are served from")

		maxConns      = flag.Int("max_conns", opts.MaxConns, "maximum simultaneously live connections")
		workerCount   = flag.Int("worker_count", opts.WorkerCount, "worker pool size")
		taskQueueSize = flag.Int("task_queue_size", opts.TaskQueueSize, "worker pool pending-task backlog")

		credSQL     = flag.Bool("sql", false, "use a MySQL-backed credential store instead of in-memory")
		sqlHost     = flag.String("sql_host", "localhost", "MySQL host")
		sqlPort     = flag.Int("sql_port", 3306, "MySQL port")
		sqlUser     = flag.String("sql_user", "", "MySQL user")
		sqlPassword = flag.String("sql_password", "", "MySQL password")
		sqlDB       = flag.String("sql_db", "", "MySQL database name")
		sqlPoolSize = flag.Int("sql_pool_size", opts.SQLPoolSize, "MySQL connection pool size")

		openLog      = flag.Bool("open_log", opts.OpenLog, "enable logging")
		logLevel     = flag.Int("log_level", opts.LogLevel, "0=debug 1=info 2=warn 3=error")
		logQueueSize = flag.Int("log_queue_size", opts.LogQueueSize, "0 = synchronous logging, >0 = async queue depth")
	)
	flag.Parse()

	opts.Port = *port
	opts.TriggerMode = *triggerMode
	opts.TimeoutMS = *timeoutMS
	opts.OpenLinger = *openLinger
	opts.SrcDir = *srcDir
	opts.MaxConns = *maxConns
	opts.WorkerCount = *workerCount
	opts.TaskQueueSize = *taskQueueSize
	opts.SQLHost = *sqlHost
	opts.SQLPort = *sqlPort
	opts.SQLUser = *sqlUser
	opts.SQLPassword = *sqlPassword
	opts.SQLDBName = *sqlDB
	opts.SQLPoolSize = *sqlPoolSize
	opts.OpenLog = *openLog
	opts.LogLevel = *logLevel
	opts.LogQueueSize = *logQueueSize
	if *credSQL {
		opts.CredKind = httpd.CredSQL
	}

	srv, err := httpd.New(opts)
	if err != nil {
		color.Red("httpd: init error: %v", err)
		os.Exit(1)
	}

	banner := color.New(color.FgGreen, color.Bold)
	banner.Println("========== Server init ==========")
	fmt.Printf("Port: %d, OpenLinger: %v\n", opts.Port, opts.OpenLinger)
	fmt.Printf("Trigger mode: %d\n", opts.TriggerMode)
	fmt.Printf("LogSys level: %d\n", opts.LogLevel)
	fmt.Printf("srcDir: %s\n", opts.SrcDir)
	fmt.Printf("WorkerPool num: %d, TaskQueue size: %d\n", opts.WorkerCount, opts.TaskQueueSize)
	banner.Println("========== Server start ==========")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()

	select {
	case sig := <-sigCh:
		fmt.Printf("received signal %v, shutting down\n", sig)
	case err := <-errCh:
		if err != nil {
			color.Red("httpd: serve error: %v", err)
		}
	}

	if err := srv.Close(); err != nil {
		color.Red("httpd: shutdown error: %v", err)
		os.Exit(1)
	}
	banner.Println("========== Server stopped ==========")
}
