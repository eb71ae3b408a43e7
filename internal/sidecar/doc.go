// Package sidecar supervises the single long-running worker process
// and exposes its control plane.
//
// Supervisor owns the worker's process handle:
//   - Idempotent Start/Stop with a monotonic generation id per spawn
//   - One lock guards the handle and the sticky last error together,
//     so callers never see a torn "running vs failed" view
//   - A per-generation monitor drains stdout/stderr and watches for
//     termination; all of its state mutations are compare-and-clear
//     keyed on the generation, so a stale monitor cannot touch a
//     handle installed by a newer start
//   - Close force-kills any live worker, on every exit path
//
// ControlClient issues HTTP requests against the worker's own control
// surface (health, prompt), failing fast with ErrCodeNotRunning when
// the supervisor reports no live worker.
//
// Example:
//
//	sup := sidecar.NewSupervisor(sidecar.Options{
//	    Name: "mix",
//	    Args: sidecar.DefaultArgs("/etc/mix/config.toml", 8088),
//	})
//	defer sup.Close()
//	if err := sup.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	client := sidecar.NewControlClient("http://127.0.0.1:8088", sup.IsRunning)
//	reply, err := client.SendPrompt(ctx, "hello")
package sidecar
