// Package savify provides a library API for per-file version tracking.
//
// A Client wraps a workspace: a directory holding a .savify/ state directory
// inside a git repository. Each tracked file has its own history line (a git
// branch) and every commit of the file adds a version to that line.
//
// # Concurrency Safety
//
// Operations switch the repository's HEAD while they run and restore it
// before returning. A Client is safe for use by one goroutine at a time;
// two clients (or a client and the savify command) must not mutate the same
// workspace concurrently.
//
// # Usage
//
//	client, err := savify.OpenOrInit(dir, savify.Options{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	res, err := client.Commit(ctx, "notes.txt")
//	versions, err := client.Versions(ctx, "notes.txt")
//	_, err = client.Restore(ctx, "notes.txt", "Version 1")
package savify
