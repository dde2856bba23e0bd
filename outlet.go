package shiftkit

import (
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/pkg/errors"

	"github.com/hubertat/shiftkit/drivers"
)

// Outlet is one chain output presented as a HomeKit outlet.
type Outlet struct {
	Name           string
	OutPin         uint16
	DisableHomekit bool
	IsFaulty       bool

	output drivers.DigitalOutput

	hk    *accessory.Outlet
	fault *characteristic.StatusFault

	lock sync.Mutex
}

func (ou *Outlet) GetUniqueId() uint64 {
	hash := fnv.New64()
	hash.Write([]byte("Outlet_" + ou.Name))
	return hash.Sum64()
}

func (ou *Outlet) Init(driver drivers.IoDriver) error {
	if !driver.IsReady() {
		return fmt.Errorf("Init failed, driver not ready")
	}

	var err error
	ou.output, err = driver.GetOutput(ou.OutPin)
	if err != nil {
		return errors.Wrapf(err, "Init of outlet %s failed", ou.Name)
	}

	if ou.DisableHomekit {
		return nil
	}
	info := accessory.Info{
		Name:         ou.Name,
		SerialNumber: fmt.Sprintf("outlet:%s:%02d", driver.String(), ou.OutPin),
		Manufacturer: homeKitBridgeAuthor,
	}
	ou.hk = accessory.NewOutlet(info)

	ou.fault = characteristic.NewStatusFault()
	ou.fault.SetValue(characteristic.StatusFaultNoFault)
	ou.hk.Outlet.AddC(ou.fault.C)

	state, err := ou.output.GetState()
	if err == nil {
		ou.hk.Outlet.On.SetValue(state)
	}

	ou.hk.Outlet.On.OnValueRemoteUpdate(ou.SetValue)
	return nil
}

func (ou *Outlet) GetHk() *accessory.A {
	if ou.hk == nil {
		return nil
	}
	return ou.hk.A
}

func (ou *Outlet) GetState() bool {
	ou.lock.Lock()
	defer ou.lock.Unlock()

	if ou.output == nil {
		return false
	}
	state, _ := ou.output.GetState()
	return state
}

// OutputChanged keeps HomeKit in step when the output is switched through
// HTTP or MQTT.
func (ou *Outlet) OutputChanged(pin uint16, state bool) {
	if pin != ou.OutPin || ou.hk == nil {
		return
	}
	ou.hk.Outlet.On.SetValue(state)
}

func (ou *Outlet) setFault(faulty bool) {
	ou.IsFaulty = faulty
	if ou.fault == nil {
		return
	}
	if faulty {
		ou.fault.SetValue(characteristic.StatusFaultGeneralFault)
	} else {
		ou.fault.SetValue(characteristic.StatusFaultNoFault)
	}
}

func (ou *Outlet) SetValue(state bool) {
	ou.lock.Lock()
	defer ou.lock.Unlock()

	if ou.output == nil {
		return
	}
	ou.setFault(ou.output.Set(state) != nil)
}

func (ou *Outlet) Toggle() {
	ou.SetValue(!ou.GetState())
}
