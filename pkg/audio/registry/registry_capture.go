package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/xaionaro-go/pcmrecorder/pkg/audio/types"
)

type CaptureDeviceFactory interface {
	NewCaptureDevice() (types.CaptureDevice, error)
}

type captureFactoryWithPriority struct {
	Priority int
	CaptureDeviceFactory
}

var (
	captureFactoryRegistry       = map[reflect.Type]captureFactoryWithPriority{}
	captureFactoryRegistryLocker sync.Mutex
)

func RegisterCaptureFactory(
	priority int,
	factory CaptureDeviceFactory,
) {
	t := reflect.ValueOf(factory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	captureFactoryRegistryLocker.Lock()
	defer captureFactoryRegistryLocker.Unlock()
	if _, ok := captureFactoryRegistry[t]; ok {
		panic(fmt.Errorf("there is already registered a factory of CaptureDevice of type %v", t))
	}
	captureFactoryRegistry[t] = captureFactoryWithPriority{
		Priority:             priority,
		CaptureDeviceFactory: factory,
	}
}

// CaptureFactories returns the registered factories, highest priority first.
func CaptureFactories() []CaptureDeviceFactory {
	captureFactoryRegistryLocker.Lock()
	var factoriesWithPriorities []captureFactoryWithPriority
	for _, factory := range captureFactoryRegistry {
		factoriesWithPriorities = append(factoriesWithPriorities, factory)
	}
	captureFactoryRegistryLocker.Unlock()

	sort.Slice(factoriesWithPriorities, func(i, j int) bool {
		return factoriesWithPriorities[i].Priority > factoriesWithPriorities[j].Priority
	})

	var factories []CaptureDeviceFactory
	for _, factory := range factoriesWithPriorities {
		factories = append(factories, factory.CaptureDeviceFactory)
	}

	return factories
}
