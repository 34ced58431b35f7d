// Package async provides a minimal Future for operations that report only an error.
//
// A Future is resolved once, either by a goroutine started with Exec or by code that
// owns it and calls Resolve. The invoker uses the latter so that a background worker can
// wait for a call it scheduled onto the main goroutine:
//
//	f := inv.Call(func(ctx context.Context) error {
//		return world.Spawn(ctx, player)
//	})
//	if err := f.AwaitWithTimeout(time.Second); err != nil {
//		return err
//	}
//
// Running work concurrently:
//
//	futures := []*async.Future{
//		async.Exec(ctx, 1, produce),
//		async.Exec(ctx, 2, produce),
//	}
//	if err := async.ExecAll(futures...); err != nil {
//		log.Println(err)
//	}
package async
