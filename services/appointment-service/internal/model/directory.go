package model

type Customer struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenantId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	// SMSConsent gates every text message to the customer.
	SMSConsent bool `json:"smsConsent"`
}

func (c Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type Staff struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Title    string `json:"title,omitempty"`
}

type Service struct {
	ID              string  `json:"id"`
	TenantID        string  `json:"tenantId"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration"`
	Price           float64 `json:"price"`
}

// AppointmentDetails is an appointment with the references the caller asked to include.
type AppointmentDetails struct {
	Appointment
	Customer *Customer `json:"customer,omitempty"`
	Staff    *Staff    `json:"staff,omitempty"`
	Service  *Service  `json:"service,omitempty"`
}
