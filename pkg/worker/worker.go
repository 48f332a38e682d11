package worker

import "github.com/kohaven/medley/pkg/logger"

var workerLogger = logger.Get("Worker")

type (
	WakeupChan   chan int
	WorkerStatus int

	// Task is the unit of work given to a worker. It should return true
	// if work was performed, indicating the worker should immediately poll
	// for more work rather than going back to sleep. A non-nil error
	// stops the worker.
	Task func(Worker) (bool, error)

	Worker interface {
		Start()
		Status() WorkerStatus
		WakeupChan() WakeupChan
		Label() string
		Close()
	}
)

const (
	Sleeping WorkerStatus = iota
	Working
	Finished
)

type taskWorker struct {
	label         string
	task          Task
	wakeupChan    WakeupChan
	currentStatus WorkerStatus
}

func NewWorker(label string, task Task) *taskWorker {
	return &taskWorker{
		label:         label,
		task:          task,
		wakeupChan:    make(WakeupChan),
		currentStatus: Sleeping,
	}
}

// Start runs the workers task in a loop. Each time the task reports that
// no work was available, the worker sleeps until it's woken via the wakeup
// channel. The worker exits when the wakeup channel is closed, or when the
// task returns an error.
func (worker *taskWorker) Start() {
	workerLogger.Emit(logger.NEW, "Starting worker with label %v\n", worker.label)
	worker.currentStatus = Working

	for {
		didWork, err := worker.task(worker)
		if err != nil {
			workerLogger.Emit(logger.ERROR, "Worker %v has reported an error(%T): %v\n", worker.label, err, err.Error())
			break
		}

		if didWork {
			continue
		}

		if !worker.sleep() {
			break
		}
	}

	worker.currentStatus = Finished
	workerLogger.Emit(logger.STOP, "Worker %v has stopped\n", worker.label)
}

// Status returns the current status of this worker
func (worker *taskWorker) Status() WorkerStatus {
	return worker.currentStatus
}

func (worker *taskWorker) WakeupChan() WakeupChan {
	return worker.wakeupChan
}

// Label returns the label for this worker
func (worker *taskWorker) Label() string {
	return worker.label
}

// Close closes the Worker by closing the WakeupChan.
// Note that this does not interrupt a currently running task.
func (worker *taskWorker) Close() {
	close(worker.wakeupChan)
}

// sleep puts a worker to sleep until it's wakeupChan is
// signalled from another goroutine. Returns a boolean that
// is 'false' if the wakeup channel was closed - indicating
// the worker should quit.
func (worker *taskWorker) sleep() (isAlive bool) {
	worker.currentStatus = Sleeping

	if _, isAlive = <-worker.wakeupChan; isAlive {
		worker.currentStatus = Working
	} else {
		workerLogger.Emit(logger.STOP, "Wakeup channel for worker '%v' has been closed - worker is exiting\n", worker.label)
		worker.currentStatus = Finished
	}

	return isAlive
}
